// Package privacy moves a file's bytes between the public and private
// partitions and carries every record sharing those bytes along.
package privacy

import (
	"context"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/content/hash"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/dedup"
	"github.com/marmos91/dittofiles/pkg/document"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// Migrator toggles the privacy scope of stored files.
type Migrator struct {
	store    metadata.Store
	resolver *location.Resolver
	bytes    content.Writer
	index    *dedup.Index
	hasher   hash.Hasher
	docs     document.FieldUpdater
	now      func() time.Time
}

// Config holds the collaborators of a Migrator.
type Config struct {
	Store    metadata.Store
	Resolver *location.Resolver
	Bytes    content.Writer
	Index    *dedup.Index
	Hasher   hash.Hasher

	// Documents receives owner field updates. Nil disables propagation.
	Documents document.FieldUpdater
}

// New creates a Migrator.
func New(cfg Config) *Migrator {
	docs := cfg.Documents
	if docs == nil {
		docs = document.Noop{}
	}
	return &Migrator{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		bytes:    cfg.Bytes,
		index:    cfg.Index,
		hasher:   cfg.Hasher,
		docs:     docs,
		now:      time.Now,
	}
}

// SetPrivate moves rec into the requested scope.
//
// The bytes move with a single rename. If a record of the target scope
// already points at the same bytes (by hash), or the destination path holds
// them, rec and its aliases adopt that file instead and the old bytes are
// removed after commit; if the destination path holds different bytes the
// call fails with ErrPrivacyConflict. Every other record pointing at the old URL
// is updated to the new one, as is every owner-document field still holding
// the old URL. A toggle whose URL would not change returns rec untouched.
//
// Remote records only flip the flag; folders are rejected.
//
// Returns the updated record.
func (m *Migrator) SetPrivate(ctx context.Context, tx *txn.Tx, rec *metadata.FileRecord, isPrivate bool) (*metadata.FileRecord, error) {
	if rec.IsFolder {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, rec.ID, "folders have no privacy scope")
	}

	// ========================================================================
	// Step 1: Remote references only carry the flag
	// ========================================================================

	if !rec.IsLocal() {
		if rec.IsPrivate == isPrivate {
			return rec, nil
		}
		updated := rec.Clone()
		updated.IsPrivate = isPrivate
		updated.ModifiedAt = m.now()
		if err := m.store.PutFile(ctx, tx, updated); err != nil {
			return nil, err
		}
		return updated, nil
	}

	// ========================================================================
	// Step 2: Compute the target URL; identical URL is a no-op
	// ========================================================================

	oldURL := rec.FileURL
	newURL := location.URL(metadata.DiskName(oldURL), isPrivate)
	if newURL == oldURL {
		return rec, nil
	}

	// ========================================================================
	// Step 3: Adopt a file of the target scope holding the same bytes, or
	// move ours there
	// ========================================================================

	existing, err := m.index.Find(ctx, tx, rec.ContentHash, isPrivate, rec.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		newURL = existing.FileURL
		if err := m.discard(ctx, tx, oldURL); err != nil {
			return nil, err
		}
		logger.Debug("privacy: %s already holds the bytes of %s, adopting", newURL, oldURL)
	} else if err := m.relocate(ctx, tx, oldURL, newURL, rec.ContentHash); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 4: Thumbnails follow their image
	// ========================================================================

	newThumb, err := m.moveThumbnail(ctx, tx, rec.ThumbnailURL, isPrivate)
	if err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 5: Re-point the record and every alias of the old bytes
	// ========================================================================

	aliases, err := m.index.Aliases(ctx, tx, rec)
	if err != nil {
		return nil, err
	}

	now := m.now()
	updated := rec.Clone()
	owners := make(map[metadata.Attachment]struct{})

	for _, r := range append([]*metadata.FileRecord{updated}, aliases...) {
		r.FileURL = newURL
		r.IsPrivate = isPrivate
		if newThumb != "" && r.ThumbnailURL == rec.ThumbnailURL {
			r.ThumbnailURL = newThumb
		}
		r.ModifiedAt = now
		if err := m.store.PutFile(ctx, tx, r); err != nil {
			return nil, err
		}
		if r.AttachedTo != nil && r.AttachedTo.Field != "" {
			owners[*r.AttachedTo] = struct{}{}
		}
	}

	// ========================================================================
	// Step 6: Propagate the new URL into owner documents
	// ========================================================================

	for owner := range owners {
		changed, err := m.docs.ReplaceURL(ctx, tx, owner, oldURL, newURL)
		if err != nil {
			return nil, err
		}
		if changed {
			logger.Debug("privacy: %s now references %s", owner, newURL)
		}
	}

	logger.Info("privacy: %s -> %s (%d aliases)", oldURL, newURL, len(aliases))
	return updated, nil
}

// moveThumbnail relocates a local thumbnail into the new scope and returns
// its new URL, or "" when there is nothing to move.
func (m *Migrator) moveThumbnail(ctx context.Context, tx *txn.Tx, thumbURL string, isPrivate bool) (string, error) {
	if thumbURL == "" || metadata.IsRemoteURL(thumbURL) {
		return "", nil
	}
	newThumb := location.URL(metadata.DiskName(thumbURL), isPrivate)
	if newThumb == thumbURL {
		return "", nil
	}

	oldPath, _, err := m.resolver.ResolveURL(thumbURL)
	if err != nil {
		return "", err
	}
	present, err := m.bytes.Exists(ctx, oldPath)
	if err != nil {
		return "", err
	}
	if !present {
		logger.Warn("privacy: thumbnail %s is missing on disk, leaving it behind", thumbURL)
		return "", nil
	}

	if err := m.relocate(ctx, tx, thumbURL, newThumb, ""); err != nil {
		return "", err
	}
	return newThumb, nil
}

// relocate moves the bytes behind oldURL to newURL.
//
// When newURL is already occupied: with a digest, the occupant is adopted if
// it holds the same bytes and ErrPrivacyConflict is returned otherwise;
// without a digest (derived files such as thumbnails) it is always adopted.
// An adopted move leaves the old bytes to be removed after commit.
func (m *Migrator) relocate(ctx context.Context, tx *txn.Tx, oldURL, newURL, digest string) error {
	oldPath, _, err := m.resolver.ResolveURL(oldURL)
	if err != nil {
		return err
	}
	newPath, _, err := m.resolver.ResolveURL(newURL)
	if err != nil {
		return err
	}

	occupied, err := m.bytes.Exists(ctx, newPath)
	if err != nil {
		return err
	}
	if !occupied {
		return m.bytes.Move(ctx, tx, oldPath, newPath)
	}

	if digest != "" {
		existing, err := m.bytes.Read(ctx, newPath)
		if err != nil {
			return err
		}
		if m.hasher.Sum(existing) != digest {
			return metadata.NewError(metadata.ErrPrivacyConflict, newURL, "a file with the same name already exists")
		}
	}

	logger.Debug("privacy: %s already holds the bytes of %s, adopting", newURL, oldURL)
	return m.bytes.Remove(ctx, tx, oldPath)
}

// discard schedules the bytes behind fileURL for removal after commit.
func (m *Migrator) discard(ctx context.Context, tx *txn.Tx, fileURL string) error {
	path, _, err := m.resolver.ResolveURL(fileURL)
	if err != nil {
		return err
	}
	return m.bytes.Remove(ctx, tx, path)
}
