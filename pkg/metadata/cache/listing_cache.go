// Package cache provides caching layers for metadata operations.
//
// This package implements a folder listing cache in front of a metadata.Store.
// File browsers and the CLI `ls` command repeatedly list the same folders;
// the cache answers those from memory until a write touches the folder.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// CachedStore wraps a metadata.Store with caching for folder listings.
//
// Cache Strategy:
//   - Only listings read outside a transaction are cached
//   - LRU eviction when cache is full
//   - TTL-based expiration
//   - Invalidation of the old and new parent folder on every write, repeated
//     when the writing transaction commits or aborts
//
// Thread Safety:
// All operations are protected by a mutex for safe concurrent use.
type CachedStore struct {
	metadata.Store

	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	cache   map[string]*cacheEntry
	lruList *list.List

	hits   uint64
	misses uint64

	metrics CacheMetrics
}

type cacheEntry struct {
	children  []*metadata.FileRecord
	timestamp time.Time
	lruNode   *list.Element
}

// CacheConfig holds configuration for the listing cache.
type CacheConfig struct {
	// TTL is how long cached entries remain valid
	TTL time.Duration

	// MaxEntries limits the cache size (LRU eviction)
	MaxEntries int

	// Metrics receives hit/miss events. Optional.
	Metrics CacheMetrics
}

// DefaultCacheConfig returns production-ready cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        5 * time.Second,
		MaxEntries: 1000,
	}
}

// NewCachedStore wraps store with a listing cache.
func NewCachedStore(store metadata.Store, config CacheConfig) *CachedStore {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig().MaxEntries
	}
	if config.Metrics == nil {
		config.Metrics = noopCacheMetrics{}
	}
	logger.Info("Folder listing cache enabled: ttl=%v max_entries=%d", config.TTL, config.MaxEntries)

	return &CachedStore{
		Store:      store,
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
		cache:      make(map[string]*cacheEntry),
		lruList:    list.New(),
		metrics:    config.Metrics,
	}
}

// ListChildren serves committed listings from the cache.
func (c *CachedStore) ListChildren(ctx context.Context, tx *txn.Tx, folder string) ([]*metadata.FileRecord, error) {
	if tx != nil {
		return c.Store.ListChildren(ctx, tx, folder)
	}

	if children, ok := c.get(folder); ok {
		return children, nil
	}

	children, err := c.Store.ListChildren(ctx, nil, folder)
	if err != nil {
		return nil, err
	}
	c.put(folder, children)
	return cloneAll(children), nil
}

// PutFile writes through and invalidates the affected folders.
func (c *CachedStore) PutFile(ctx context.Context, tx *txn.Tx, rec *metadata.FileRecord) error {
	folders := []string{rec.Folder}
	if prev, err := c.Store.GetFile(ctx, tx, rec.ID); err == nil && prev.Folder != rec.Folder {
		folders = append(folders, prev.Folder)
	}

	if err := c.Store.PutFile(ctx, tx, rec); err != nil {
		return err
	}
	c.invalidate(tx, folders...)
	return nil
}

// DeleteFile writes through and invalidates the record's folder.
func (c *CachedStore) DeleteFile(ctx context.Context, tx *txn.Tx, id string) error {
	prev, err := c.Store.GetFile(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := c.Store.DeleteFile(ctx, tx, id); err != nil {
		return err
	}
	c.invalidate(tx, prev.Folder)
	return nil
}

func (c *CachedStore) get(folder string) ([]*metadata.FileRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.cache[folder]
	if !exists || time.Since(entry.timestamp) > c.ttl {
		c.misses++
		c.metrics.RecordMiss()
		return nil, false
	}

	c.lruList.MoveToFront(entry.lruNode)
	c.hits++
	c.metrics.RecordHit()
	return cloneAll(entry.children), true
}

func (c *CachedStore) put(folder string, children []*metadata.FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.cache[folder]; exists {
		existing.children = cloneAll(children)
		existing.timestamp = time.Now()
		c.lruList.MoveToFront(existing.lruNode)
		return
	}

	if len(c.cache) >= c.maxEntries {
		c.evictOldest()
	}

	entry := &cacheEntry{
		children:  cloneAll(children),
		timestamp: time.Now(),
	}
	entry.lruNode = c.lruList.PushFront(folder)
	c.cache[folder] = entry
	c.metrics.SetEntries(len(c.cache))
}

// evictOldest removes the least recently used entry.
// Must be called with c.mu held.
func (c *CachedStore) evictOldest() {
	oldest := c.lruList.Back()
	if oldest == nil {
		return
	}
	c.lruList.Remove(oldest)

	key := oldest.Value.(string)
	delete(c.cache, key)

	logger.Debug("Evicted folder cache entry: %s", key)
}

// invalidate drops folders now and again when tx finishes, so a listing
// cached while tx was in flight never outlives it.
func (c *CachedStore) invalidate(tx *txn.Tx, folders ...string) {
	c.drop(folders...)
	if tx == nil {
		return
	}
	tx.AfterCommit(func(context.Context) { c.drop(folders...) })
	tx.OnAbort(func(context.Context) { c.drop(folders...) })
}

func (c *CachedStore) drop(folders ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, folder := range folders {
		entry, exists := c.cache[folder]
		if !exists {
			continue
		}
		c.lruList.Remove(entry.lruNode)
		delete(c.cache, folder)
		logger.Debug("Invalidated folder cache entry: %s", folder)
	}
	c.metrics.SetEntries(len(c.cache))
}

// GetCacheStats returns cache hit/miss statistics.
func (c *CachedStore) GetCacheStats() (hits, misses uint64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.cache)
}

// ClearCache removes all cached entries.
func (c *CachedStore) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cacheEntry)
	c.lruList = list.New()
	c.metrics.SetEntries(0)
}

func cloneAll(recs []*metadata.FileRecord) []*metadata.FileRecord {
	out := make([]*metadata.FileRecord, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

var _ metadata.Store = (*CachedStore)(nil)
