package engine

import (
	"context"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/media"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/permission"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// ReplaceContent rewrites a file's bytes in place.
//
// The previous bytes are snapshotted so an abort restores them exactly.
// Every record sharing the file follows the new hash and size. If the new
// bytes already exist elsewhere in the same scope, the records are pointed
// at that file instead and the old bytes are removed after commit. A
// thumbnail of the old bytes is dropped from the records and removed once
// unreferenced.
func (e *Engine) ReplaceContent(ctx context.Context, tx *txn.Tx, actor permission.Actor, id string, data []byte) (rec *metadata.FileRecord, err error) {
	defer e.observe("ReplaceContent", tx, time.Now(), &err)

	rec, err = e.load(ctx, tx, actor, id, permission.Write)
	if err != nil {
		return nil, err
	}
	return e.replace(ctx, tx, rec, data)
}

// OptimizeImage shrinks and re-encodes an image in place.
func (e *Engine) OptimizeImage(ctx context.Context, tx *txn.Tx, actor permission.Actor, id string) (rec *metadata.FileRecord, err error) {
	defer e.observe("OptimizeImage", tx, time.Now(), &err)

	rec, data, err := e.loadImage(ctx, tx, actor, id)
	if err != nil {
		return nil, err
	}

	optimized, err := media.Optimize(metadata.DiskName(rec.FileURL), data, e.optimize)
	if err != nil {
		return nil, err
	}
	logger.Debug("optimized %s: %s -> %s", rec.FileURL, humanBytes(int64(len(data))), humanBytes(int64(len(optimized))))

	return e.replace(ctx, tx, rec, optimized)
}

// MakeThumbnail renders a thumbnail next to an image and records its URL on
// the image and every record sharing it.
func (e *Engine) MakeThumbnail(ctx context.Context, tx *txn.Tx, actor permission.Actor, id string) (rec *metadata.FileRecord, err error) {
	defer e.observe("MakeThumbnail", tx, time.Now(), &err)

	rec, data, err := e.loadImage(ctx, tx, actor, id)
	if err != nil {
		return nil, err
	}

	diskName := metadata.DiskName(rec.FileURL)
	thumb, err := media.Thumbnail(diskName, data, e.thumbnail)
	if err != nil {
		return nil, err
	}

	thumbName := media.ThumbnailName(diskName, e.thumbnail.Suffix)
	p, err := e.resolver.Resolve(thumbName, rec.IsPrivate)
	if err != nil {
		return nil, err
	}
	present, err := e.bytes.Exists(ctx, p)
	if err != nil {
		return nil, err
	}
	if _, err := e.bytes.Write(ctx, tx, p, thumb, present); err != nil {
		return nil, err
	}
	e.metrics.RecordBytesWritten(int64(len(thumb)))

	thumbURL := location.URL(thumbName, rec.IsPrivate)
	aliases, err := e.index.Aliases(ctx, tx, rec)
	if err != nil {
		return nil, err
	}

	now := e.now()
	for _, r := range append([]*metadata.FileRecord{rec}, aliases...) {
		r.ThumbnailURL = thumbURL
		r.ModifiedAt = now
		if err := e.store.PutFile(ctx, tx, r); err != nil {
			return nil, err
		}
	}

	logger.Info("thumbnail %s for %s", thumbURL, rec.FileURL)
	return rec, nil
}

// loadImage loads a local image record with Write permission and its bytes.
func (e *Engine) loadImage(ctx context.Context, tx *txn.Tx, actor permission.Actor, id string) (*metadata.FileRecord, []byte, error) {
	rec, err := e.load(ctx, tx, actor, id, permission.Write)
	if err != nil {
		return nil, nil, err
	}
	if !rec.IsLocal() || !media.IsImage(metadata.DiskName(rec.FileURL)) {
		return nil, nil, metadata.NewError(metadata.ErrInvalidArgument, id, "not a local image")
	}

	data, err := e.content(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, data, nil
}

// replace swaps rec's bytes for data.
func (e *Engine) replace(ctx context.Context, tx *txn.Tx, rec *metadata.FileRecord, data []byte) (*metadata.FileRecord, error) {
	if !rec.IsLocal() {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, rec.ID, "only local files have replaceable content")
	}
	if err := e.checkSize(rec.FileName, int64(len(data))); err != nil {
		return nil, err
	}

	digest := e.hasher.Sum(data)
	if digest == rec.ContentHash {
		return rec, nil
	}

	// ========================================================================
	// Step 1: Collect every record sharing the old bytes
	// ========================================================================

	aliases, err := e.index.Aliases(ctx, tx, rec)
	if err != nil {
		return nil, err
	}
	oldURL := rec.FileURL
	oldPath, _, err := e.resolver.ResolveURL(oldURL)
	if err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Reuse identical bytes in the scope or rewrite in place
	// ========================================================================

	existing, err := e.index.Find(ctx, tx, digest, rec.IsPrivate, rec.ID)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordDedup(existing != nil && existing.FileURL != oldURL, rec.IsPrivate)

	newURL := oldURL
	if existing != nil && existing.FileURL != oldURL {
		newURL = existing.FileURL
		logger.Debug("replace: %s now matches %s", oldURL, newURL)
	} else {
		if _, err := e.bytes.Write(ctx, tx, oldPath, data, true); err != nil {
			return nil, err
		}
		e.metrics.RecordBytesWritten(int64(len(data)))
	}

	// ========================================================================
	// Step 3: Re-point the records
	// ========================================================================

	// Thumbnails rendered from the old bytes are stale: adopt the thumbnail
	// of the file joined, if any, and drop ours.
	newThumb := ""
	if newURL != oldURL {
		newThumb = existing.ThumbnailURL
	}

	now := e.now()
	contentType := media.DetectContentType(data)
	updated := rec.Clone()
	staleThumbs := make(map[string]struct{})
	for _, r := range append([]*metadata.FileRecord{updated}, aliases...) {
		if r.ThumbnailURL != "" && r.ThumbnailURL != newThumb && !metadata.IsRemoteURL(r.ThumbnailURL) {
			staleThumbs[r.ThumbnailURL] = struct{}{}
		}
		r.FileURL = newURL
		r.ContentHash = digest
		r.Size = int64(len(data))
		r.ContentType = contentType
		r.ThumbnailURL = newThumb
		r.ModifiedAt = now
		if err := e.store.PutFile(ctx, tx, r); err != nil {
			return nil, err
		}
	}

	// ========================================================================
	// Step 4: Drop the old bytes and thumbnails once nothing points at them
	// ========================================================================

	if newURL != oldURL {
		if err := e.removeIfUnreferenced(ctx, tx, oldURL, ""); err != nil {
			return nil, err
		}
	}
	for thumbURL := range staleThumbs {
		if err := e.removeIfUnreferenced(ctx, tx, thumbURL, ""); err != nil {
			return nil, err
		}
	}

	return updated, nil
}
