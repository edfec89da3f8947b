package engine

import (
	"context"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/permission"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// Delete removes a record.
//
// Folders must be empty and unprotected. A file's bytes, and its thumbnail,
// are removed after commit when no other record references them; removal
// failures are logged and leave the bytes to garbage collection.
func (e *Engine) Delete(ctx context.Context, tx *txn.Tx, actor permission.Actor, id string) (err error) {
	defer e.observe("Delete", tx, time.Now(), &err)

	rec, err := e.store.GetFile(ctx, tx, id)
	if err != nil {
		return err
	}
	if rec.IsProtectedFolder() {
		return metadata.NewError(metadata.ErrProtectedFolder, id, "folder cannot be deleted")
	}
	if err := e.authorize(rec, permission.Delete, actor); err != nil {
		return err
	}

	if rec.IsFolder {
		return e.folders.Delete(ctx, tx, id)
	}
	return e.deleteFile(ctx, tx, rec)
}

// deleteFile removes a file record and schedules removal of its bytes.
func (e *Engine) deleteFile(ctx context.Context, tx *txn.Tx, rec *metadata.FileRecord) error {
	if err := e.store.DeleteFile(ctx, tx, rec.ID); err != nil {
		return err
	}

	if rec.IsLocal() {
		if err := e.removeIfUnreferenced(ctx, tx, rec.FileURL, rec.ID); err != nil {
			return err
		}
	}
	if rec.ThumbnailURL != "" && !metadata.IsRemoteURL(rec.ThumbnailURL) {
		if err := e.removeIfUnreferenced(ctx, tx, rec.ThumbnailURL, rec.ID); err != nil {
			return err
		}
	}

	logger.Info("deleted %s (%s)", rec.FileName, rec.FileURL)
	return nil
}

// removeIfUnreferenced removes the bytes behind fileURL (after commit when
// tx is set) unless a record other than excludeID still uses them.
func (e *Engine) removeIfUnreferenced(ctx context.Context, tx *txn.Tx, fileURL, excludeID string) error {
	shared, err := e.index.Referenced(ctx, tx, fileURL, excludeID)
	if err != nil {
		return err
	}
	if shared {
		logger.Debug("keeping %s: still referenced", fileURL)
		return nil
	}

	p, _, err := e.resolver.ResolveURL(fileURL)
	if err != nil {
		logger.Warn("not removing bytes of unresolvable url %s: %v", fileURL, err)
		return nil
	}
	if err := e.bytes.Remove(ctx, tx, p); err != nil {
		logger.Warn("failed to remove %s, leaving stale bytes: %v", p, err)
	}
	return nil
}
