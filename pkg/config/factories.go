package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content/fs"
	"github.com/marmos91/dittofiles/pkg/content/hash"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/document"
	"github.com/marmos91/dittofiles/pkg/engine"
	"github.com/marmos91/dittofiles/pkg/gc"
	"github.com/marmos91/dittofiles/pkg/media"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metadata/badger"
	"github.com/marmos91/dittofiles/pkg/metadata/cache"
	"github.com/marmos91/dittofiles/pkg/metadata/memory"
	"github.com/marmos91/dittofiles/pkg/metrics"
	promMetrics "github.com/marmos91/dittofiles/pkg/metrics/prometheus"
	"github.com/marmos91/dittofiles/pkg/permission"
)

// Runtime is everything a command needs, built from one Config.
type Runtime struct {
	Engine    *engine.Engine
	Store     metadata.Store
	Bytes     *fs.FSWriter
	Resolver  *location.Resolver
	Collector *gc.Collector
}

// RuntimeOption customizes CreateRuntime.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	documents document.FieldUpdater
}

// WithDocuments sets the owner-document store that privacy toggles propagate
// new URLs into. Without it owner fields are left untouched, as the CLI has
// no document store of its own.
func WithDocuments(docs document.FieldUpdater) RuntimeOption {
	return func(o *runtimeOptions) { o.documents = docs }
}

// Close releases the metadata store.
func (r *Runtime) Close() error {
	return r.Store.Close()
}

// CreateRuntime wires the engine, its stores and the garbage collector.
//
// Metrics are registered when cfg.Metrics.Enabled is set. The Prometheus
// registry is process-global, so CreateRuntime with metrics enabled must be
// called at most once per process.
func CreateRuntime(ctx context.Context, cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	options := runtimeOptions{documents: document.Noop{}}
	for _, opt := range opts {
		opt(&options)
	}

	// ========================================================================
	// Step 1: Metrics
	// ========================================================================

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	engineMetrics := promMetrics.NewEngineMetrics()
	gcMetrics := promMetrics.NewGCMetrics()

	// ========================================================================
	// Step 2: Site root and content writer
	// ========================================================================

	resolver, err := location.NewResolver(cfg.Storage.SiteRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid site root: %w", err)
	}

	bytes, err := fs.NewFSWriter(ctx, resolver.Root(), resolver.PartitionDir(false), resolver.PartitionDir(true))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare site root: %w", err)
	}

	hasher, err := hash.New(hash.Algorithm(cfg.Storage.HashAlgorithm))
	if err != nil {
		return nil, err
	}

	maxFileSize, err := cfg.Storage.MaxFileSizeBytes()
	if err != nil {
		return nil, fmt.Errorf("invalid max_file_size: %w", err)
	}

	// ========================================================================
	// Step 3: Metadata store
	// ========================================================================

	metaCfg := withDefaultBadgerPath(cfg.Metadata, resolver.Root())
	store, err := CreateMetadataStore(ctx, &metaCfg)
	if err != nil {
		return nil, err
	}

	gate, err := CreateGate(&cfg.Permissions)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// ========================================================================
	// Step 4: Engine and collector
	// ========================================================================

	eng := engine.New(engine.Config{
		Store:            store,
		Bytes:            bytes,
		Resolver:         resolver,
		Hasher:           hasher,
		Gate:             gate,
		Documents:        options.documents,
		MaxFileSize:      maxFileSize,
		AttachmentLimits: cfg.Storage.attachmentLimits(),
		Thumbnail: media.ThumbnailOptions{
			Width:  cfg.Storage.Thumbnail.Width,
			Height: cfg.Storage.Thumbnail.Height,
			Suffix: cfg.Storage.Thumbnail.Suffix,
		},
		Optimize: media.OptimizeOptions{
			MaxWidth:  cfg.Storage.Optimize.MaxWidth,
			MaxHeight: cfg.Storage.Optimize.MaxHeight,
			Quality:   cfg.Storage.Optimize.Quality,
		},
		Metrics: engineMetrics,
	})

	collector := gc.NewCollector(store, bytes, resolver, gc.Config{
		Enabled:          cfg.GC.Enabled,
		Interval:         cfg.GC.Interval,
		GracePeriod:      cfg.GC.GracePeriod,
		DryRun:           cfg.GC.DryRun,
		DeletesPerSecond: cfg.GC.DeletesPerSecond,
		Metrics:          gcMetrics,
	})

	logger.Debug("Runtime ready: site_root=%s hash=%s metadata=%s max_file_size=%s",
		resolver.Root(), hasher.Algorithm(), cfg.Metadata.Type, cfg.Storage.MaxFileSize)

	return &Runtime{
		Engine:    eng,
		Store:     store,
		Bytes:     bytes,
		Resolver:  resolver,
		Collector: collector,
	}, nil
}

// withDefaultBadgerPath returns cfg with the badger path defaulted to
// <siteRoot>/metadata. cfg's option map is not modified.
func withDefaultBadgerPath(cfg MetadataConfig, siteRoot string) MetadataConfig {
	if cfg.Type != "badger" {
		return cfg
	}
	opts, err := decodeBadgerOptions(cfg.Badger)
	if err != nil || opts.Path != "" || opts.InMemory {
		return cfg
	}

	badgerOpts := make(map[string]any, len(cfg.Badger)+1)
	for k, v := range cfg.Badger {
		badgerOpts[k] = v
	}
	badgerOpts["path"] = filepath.Join(siteRoot, "metadata")
	cfg.Badger = badgerOpts
	return cfg
}

func (s StorageConfig) attachmentLimits() map[string]int {
	if len(s.AttachmentLimits) == 0 {
		return nil
	}
	limits := make(map[string]int, len(s.AttachmentLimits))
	for _, l := range s.AttachmentLimits {
		limits[l.Doctype] = l.Limit
	}
	return limits
}

// CreateMetadataStore creates a metadata store based on configuration.
//
// Supported types:
//   - "memory": Uses pkg/metadata/memory (ephemeral)
//   - "badger": Uses pkg/metadata/badger (persistent BadgerDB)
//
// When cfg.Cache.Enabled is set the store is wrapped with the folder listing cache.
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Store, error) {
	var (
		store metadata.Store
		err   error
	)

	switch cfg.Type {
	case "memory":
		store, err = createMemoryMetadataStore(ctx, cfg.Memory)
	case "badger":
		store, err = createBadgerMetadataStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		store = cache.NewCachedStore(store, cache.CacheConfig{
			TTL:        cfg.Cache.TTL,
			MaxEntries: cfg.Cache.MaxEntries,
			Metrics:    metrics.NewCacheMetrics(),
		})
	}

	return store, nil
}

// createMemoryMetadataStore creates an in-memory metadata store.
func createMemoryMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(options) > 0 {
		logger.Warn("metadata.memory options are ignored: %v", options)
	}
	return memory.NewMemoryMetadataStore(), nil
}

// createBadgerMetadataStore creates a BadgerDB metadata store.
func createBadgerMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	opts, err := decodeBadgerOptions(options)
	if err != nil {
		return nil, err
	}

	store, err := badger.NewBadgerMetadataStore(ctx, badger.BadgerMetadataStoreConfig{
		DBPath:   opts.Path,
		InMemory: opts.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}
	return store, nil
}

// CreateGate returns the permission gate named by cfg.Mode.
func CreateGate(cfg *PermissionsConfig) (permission.Gate, error) {
	switch cfg.Mode {
	case "allow_all":
		return permission.AllowAll, nil
	case "owner":
		return permission.OwnerGate{}, nil
	default:
		return nil, fmt.Errorf("unknown permission mode: %q", cfg.Mode)
	}
}
