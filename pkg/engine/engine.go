// Package engine is the file engine: it composes content hashing, location
// resolution, deduplication, the folder tree, transactional byte writes,
// privacy migration and zip bundling behind one API.
//
// Every operation takes the document transaction it belongs to and the actor
// performing it. File operations register their undo with the transaction,
// metadata writes are bound to it by the store, and byte removals are
// deferred until it commits. A caller that aborts the transaction gets the
// filesystem, the metadata store and owner documents back to their prior
// state. A nil transaction applies every change immediately.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/content/hash"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/dedup"
	"github.com/marmos91/dittofiles/pkg/document"
	"github.com/marmos91/dittofiles/pkg/folder"
	"github.com/marmos91/dittofiles/pkg/media"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/permission"
	"github.com/marmos91/dittofiles/pkg/privacy"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// Config holds the collaborators and limits of an Engine.
type Config struct {
	// Store persists file and folder records
	Store metadata.Store

	// Bytes writes and reads file content under the managed root
	Bytes content.Writer

	// Resolver maps names and URLs to paths under the managed root
	Resolver *location.Resolver

	// Hasher computes content digests. Defaults to hash.DefaultAlgorithm.
	Hasher hash.Hasher

	// Gate authorizes reads and mutations. Defaults to permission.AllowAll.
	Gate permission.Gate

	// Documents receives owner field updates on privacy changes. Optional.
	Documents document.FieldUpdater

	// MaxFileSize rejects larger content with ErrFileTooLarge. 0 disables the check.
	MaxFileSize int64

	// AttachmentLimits caps the number of files attached to one document,
	// per owner doctype. Doctypes not listed are unlimited.
	AttachmentLimits map[string]int

	Thumbnail media.ThumbnailOptions
	Optimize  media.OptimizeOptions

	// Metrics receives operation events. Optional.
	Metrics metrics.EngineMetrics
}

// Engine stores files by content.
//
// Thread Safety:
// Safe for concurrent use by multiple transactions. A single transaction must
// be driven by one goroutine at a time.
type Engine struct {
	store    metadata.Store
	bytes    content.Writer
	resolver *location.Resolver
	hasher   hash.Hasher
	gate     permission.Gate
	index    *dedup.Index
	folders  *folder.Hierarchy
	privacy  *privacy.Migrator

	maxFileSize      int64
	attachmentLimits map[string]int
	thumbnail        media.ThumbnailOptions
	optimize         media.OptimizeOptions

	metrics metrics.EngineMetrics
	now     func() time.Time

	// watched holds the IDs of in-flight transactions the engine already
	// hooked for rollback metrics.
	watched sync.Map
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.Hasher == nil {
		cfg.Hasher = hash.MustNew(hash.DefaultAlgorithm)
	}
	if cfg.Gate == nil {
		cfg.Gate = permission.AllowAll
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopEngineMetrics()
	}
	if cfg.Thumbnail.Suffix == "" {
		cfg.Thumbnail = DefaultThumbnailOptions()
	}
	if cfg.Optimize.Quality == 0 {
		cfg.Optimize = DefaultOptimizeOptions()
	}

	index := dedup.New(cfg.Store, cfg.Resolver, cfg.Bytes)

	return &Engine{
		store:    cfg.Store,
		bytes:    cfg.Bytes,
		resolver: cfg.Resolver,
		hasher:   cfg.Hasher,
		gate:     cfg.Gate,
		index:    index,
		folders:  folder.New(cfg.Store),
		privacy: privacy.New(privacy.Config{
			Store:     cfg.Store,
			Resolver:  cfg.Resolver,
			Bytes:     cfg.Bytes,
			Index:     index,
			Hasher:    cfg.Hasher,
			Documents: cfg.Documents,
		}),
		maxFileSize:      cfg.MaxFileSize,
		attachmentLimits: cfg.AttachmentLimits,
		thumbnail:        cfg.Thumbnail,
		optimize:         cfg.Optimize,
		metrics:          cfg.Metrics,
		now:              time.Now,
	}
}

// DefaultThumbnailOptions returns the thumbnail box used when none is configured.
func DefaultThumbnailOptions() media.ThumbnailOptions {
	return media.ThumbnailOptions{Width: 300, Height: 300, Suffix: "small"}
}

// DefaultOptimizeOptions returns the optimization bounds used when none are configured.
func DefaultOptimizeOptions() media.OptimizeOptions {
	return media.OptimizeOptions{MaxWidth: 1920, MaxHeight: 1080, Quality: 85}
}

// Store returns the metadata store the engine writes to.
func (e *Engine) Store() metadata.Store {
	return e.store
}

// Resolver returns the location resolver of the managed root.
func (e *Engine) Resolver() *location.Resolver {
	return e.resolver
}

// observe records an operation's outcome. Use with a named error return:
//
//	defer e.observe("Create", tx, time.Now(), &err)
func (e *Engine) observe(op string, tx *txn.Tx, start time.Time, errp *error) {
	err := *errp
	e.metrics.RecordOperation(op, time.Since(start), err)
	if err != nil {
		logger.Debug("engine: %s failed: %v", op, err)
	}
	e.watch(tx)
}

// watch hooks tx once so its abort is counted.
func (e *Engine) watch(tx *txn.Tx) {
	if tx == nil || tx.State() != txn.StateActive {
		return
	}
	id := tx.ID()
	if _, loaded := e.watched.LoadOrStore(id, struct{}{}); loaded {
		return
	}
	tx.AfterCommit(func(context.Context) { e.watched.Delete(id) })
	tx.OnAbort(func(context.Context) {
		e.watched.Delete(id)
		e.metrics.RecordRollback(tx.RolledBack())
	})
}

// authorize returns ErrPermissionDenied unless actor may perform action on rec.
func (e *Engine) authorize(rec *metadata.FileRecord, action permission.Action, actor permission.Actor) error {
	if e.gate.HasPermission(rec, action, actor) {
		return nil
	}
	id := rec.ID
	if id == "" {
		id = rec.FileName
	}
	return metadata.NewError(metadata.ErrPermissionDenied, id, "%s may not %s this file", actor.User, action)
}

// load fetches a record and checks action on it.
func (e *Engine) load(ctx context.Context, tx *txn.Tx, actor permission.Actor, id string, action permission.Action) (*metadata.FileRecord, error) {
	rec, err := e.store.GetFile(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(rec, action, actor); err != nil {
		return nil, err
	}
	return rec, nil
}

// checkSize enforces MaxFileSize.
func (e *Engine) checkSize(name string, size int64) error {
	if e.maxFileSize > 0 && size > e.maxFileSize {
		return metadata.NewError(metadata.ErrFileTooLarge, name,
			"file is %s, the limit is %s", humanBytes(size), humanBytes(e.maxFileSize))
	}
	return nil
}

// checkAttachmentLimit enforces the per-doctype attachment cap.
func (e *Engine) checkAttachmentLimit(ctx context.Context, tx *txn.Tx, owner *metadata.Attachment) error {
	if owner == nil {
		return nil
	}
	limit := e.attachmentLimits[owner.Doctype]
	if limit <= 0 {
		return nil
	}

	n, err := e.store.CountAttachments(ctx, tx, owner.Doctype, owner.Name)
	if err != nil {
		return err
	}
	if n >= limit {
		return metadata.NewError(metadata.ErrAttachmentLimitReached, owner.String(),
			"maximum attachments limit of %d has been reached", limit)
	}
	return nil
}
