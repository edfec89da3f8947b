// Package gc provides best-effort garbage collection for orphaned file bytes.
//
// The garbage collector identifies and removes files under the public and
// private partitions that no metadata record references (orphaned bytes).
// This can occur due to:
//   - Crashes between a transaction commit and its deferred byte removal
//   - Failed deferred removals, which are logged and left behind
//   - Files copied into the partitions by hand
//
// In the same pass it reconciles the other direction and reports records
// whose bytes are missing on disk. Those are never modified: a missing file
// needs a human decision.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/internal/ratelimiter"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metrics"
)

// Collector performs periodic garbage collection of the managed root.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	store    metadata.Store
	bytes    content.Writer
	resolver *location.Resolver
	config   Config
	metrics  metrics.GCMetrics
	limiter  *ratelimiter.Limiter

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether background collection runs (RunNow always works)
	Enabled bool

	// Interval is how often to run garbage collection (default: 24h)
	Interval time.Duration

	// GracePeriod protects files younger than this from deletion, so bytes
	// written by a transaction that has not committed yet are never
	// collected (default: 1h)
	GracePeriod time.Duration

	// DryRun mode logs what would be deleted without actually deleting (default: false)
	DryRun bool

	// DeletesPerSecond paces orphan deletion (0 = unpaced)
	DeletesPerSecond uint

	// Metrics receives run statistics. Optional.
	Metrics metrics.GCMetrics
}

// NewCollector creates a new garbage collector.
//
// The collector will be initialized but not started. Call Start() to begin
// background garbage collection.
//
// Parameters:
//   - store: Metadata store listing every record
//   - bytes: Writer over the managed root
//   - resolver: Resolver of the managed root's partitions
//   - config: Garbage collection configuration
func NewCollector(store metadata.Store, bytes content.Writer, resolver *location.Resolver, config Config) *Collector {
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if config.GracePeriod == 0 {
		config.GracePeriod = time.Hour
	}
	m := config.Metrics
	if m == nil {
		m = metrics.NewNoopGCMetrics()
	}

	return &Collector{
		store:    store,
		bytes:    bytes,
		resolver: resolver,
		config:   config,
		metrics:  m,
		limiter:  ratelimiter.New(config.DeletesPerSecond, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins background garbage collection.
//
// Safe to call multiple times (subsequent calls are no-ops).
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	logger.Info("Starting garbage collector: interval=%s grace=%s dry_run=%v",
		c.config.Interval, c.config.GracePeriod, c.config.DryRun)

	go c.worker()
}

// Stop stops the garbage collector and waits for it to finish.
//
// Parameters:
//   - ctx: Context for timeout
//
// Returns:
//   - error: Returns error if context expires before shutdown completes
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return nil
	}

	logger.Info("Stopping garbage collector...")
	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped successfully")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate garbage collection run and blocks until it
// completes or ctx is cancelled.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

// worker is the background goroutine that runs periodic garbage collection.
func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			logger.Info("Garbage collector worker stopping...")
			return
		}
	}
}

// collect performs a single garbage collection run.
//
// This is the core GC algorithm:
//  1. Collect every local file_url and thumbnail_url referenced by a record,
//     noting records whose bytes are missing
//  2. List the files in both partitions
//  3. Compute orphaned = existing - referenced
//  4. Delete orphans older than the grace period
func (c *Collector) collect(ctx context.Context) (stats *Stats, err error) {
	stats = &Stats{StartTime: time.Now()}
	defer func() {
		stats.EndTime = time.Now()
		c.metrics.RecordRun(stats.Duration(), int(stats.OrphanedCount), len(stats.Missing), err)
	}()

	// ========================================================================
	// Step 1: Referenced URLs and missing bytes
	// ========================================================================

	records, err := c.store.ListAll(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to list records: %w", err)
	}

	referenced := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if !rec.IsLocal() {
			continue
		}
		referenced[rec.FileURL] = struct{}{}
		if rec.ThumbnailURL != "" && !metadata.IsRemoteURL(rec.ThumbnailURL) {
			referenced[rec.ThumbnailURL] = struct{}{}
		}

		present, err := c.exists(ctx, rec.FileURL)
		if err != nil {
			return stats, err
		}
		if !present {
			stats.Missing = append(stats.Missing, rec.ID)
			logger.Warn("GC: record %s (%s) is missing on disk", rec.ID, rec.FileURL)
		}
	}
	stats.ReferencedCount = uint64(len(referenced))

	// ========================================================================
	// Step 2: Existing files in both partitions
	// ========================================================================

	var orphaned []string
	for _, isPrivate := range []bool{false, true} {
		names, err := c.bytes.List(ctx, c.resolver.PartitionDir(isPrivate))
		if err != nil {
			return stats, fmt.Errorf("failed to list files: %w", err)
		}
		stats.ExistingCount += uint64(len(names))

		for _, name := range names {
			fileURL := location.URL(name, isPrivate)
			if _, ok := referenced[fileURL]; !ok {
				orphaned = append(orphaned, fileURL)
			}
		}
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		logger.Info("GC: No orphaned files found")
		return stats, nil
	}

	// ========================================================================
	// Step 3: Delete orphans past the grace period
	// ========================================================================

	cutoff := stats.StartTime.Add(-c.config.GracePeriod)
	for _, fileURL := range orphaned {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		p, _, err := c.resolver.ResolveURL(fileURL)
		if err != nil {
			logger.Warn("GC: skipping unresolvable file %s: %v", fileURL, err)
			stats.FailedCount++
			continue
		}

		mtime, err := c.bytes.ModTime(ctx, p)
		if err != nil {
			if metadata.IsErrorCode(err, metadata.ErrMissingOnDisk) {
				continue
			}
			logger.Warn("GC: cannot stat %s: %v", fileURL, err)
			stats.FailedCount++
			continue
		}
		if mtime.After(cutoff) {
			stats.RecentCount++
			logger.Debug("GC: %s is younger than the grace period, keeping", fileURL)
			continue
		}

		stats.Orphans = append(stats.Orphans, fileURL)
		if c.config.DryRun {
			logger.Info("GC: DRY RUN - would delete %s", fileURL)
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		if err := c.bytes.Remove(ctx, nil, p); err != nil {
			logger.Warn("GC: failed to delete %s: %v", fileURL, err)
			stats.FailedCount++
			continue
		}
		stats.DeletedCount++
	}

	logger.Info("GC: Completed - deleted %d files, %d failed, %d too recent, duration=%s",
		stats.DeletedCount, stats.FailedCount, stats.RecentCount, stats.Duration())

	return stats, nil
}

func (c *Collector) exists(ctx context.Context, fileURL string) (bool, error) {
	p, _, err := c.resolver.ResolveURL(fileURL)
	if err != nil {
		logger.Warn("GC: record url %s does not resolve: %v", fileURL, err)
		return false, nil
	}
	return c.bytes.Exists(ctx, p)
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time // When collection started
	EndTime         time.Time // When collection ended
	ReferencedCount uint64    // Number of distinct local URLs referenced by records
	ExistingCount   uint64    // Number of files in both partitions
	OrphanedCount   uint64    // Number of unreferenced files found
	RecentCount     uint64    // Orphans kept because they are younger than the grace period
	DeletedCount    uint64    // Number of orphans successfully deleted
	FailedCount     uint64    // Number of orphans that failed to delete

	// Orphans lists the file URLs deleted (or, in dry-run, that would be)
	Orphans []string

	// Missing lists IDs of records whose bytes are missing on disk
	Missing []string
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d recent=%d deleted=%d failed=%d missing=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount, s.RecentCount,
		s.DeletedCount, s.FailedCount, len(s.Missing), s.Duration())
}
