package engine

import (
	"context"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/archive"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/permission"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// Zip packs the given files into one archive named files.zip.
//
// Folders, remote references and files actor may not read are skipped.
// Entries use each record's display name, not its on-disk name.
func (e *Engine) Zip(ctx context.Context, tx *txn.Tx, actor permission.Actor, ids []string) (dl *archive.Download, err error) {
	defer e.observe("Zip", tx, time.Now(), &err)

	entries := make([]archive.Entry, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := e.store.GetFile(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if rec.IsFolder || !rec.IsLocal() {
			continue
		}
		if !e.gate.HasPermission(rec, permission.Read, actor) {
			logger.Debug("zip: %s may not read %s, skipping", actor.User, id)
			continue
		}

		data, err := e.content(ctx, rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, archive.Entry{Name: rec.FileName, Data: data, Modified: rec.ModifiedAt})
	}

	return archive.Pack(entries)
}

// Unzip extracts an uploaded zip into individual files and deletes the zip.
//
// Extracted files inherit the zip's privacy flag, folder and owner
// attachment. Returns ErrNotAZipFile unless the record's name ends in .zip
// and ErrZipCorrupt when the archive cannot be read.
func (e *Engine) Unzip(ctx context.Context, tx *txn.Tx, actor permission.Actor, id string) (out []*metadata.FileRecord, err error) {
	defer e.observe("Unzip", tx, time.Now(), &err)

	rec, err := e.load(ctx, tx, actor, id, permission.Delete)
	if err != nil {
		return nil, err
	}
	if rec.IsFolder || !archive.IsZipName(rec.FileName) {
		return nil, metadata.NewError(metadata.ErrNotAZipFile, rec.FileName, "not a zip file")
	}

	data, err := e.content(ctx, rec)
	if err != nil {
		return nil, err
	}
	entries, err := archive.Unpack(data, e.maxFileSize)
	if err != nil {
		return nil, err
	}

	// The zip goes first so it does not count against the attachment limit
	// of its own contents. Its bytes are only removed after commit.
	if err := e.deleteFile(ctx, tx, rec); err != nil {
		return nil, err
	}

	out = make([]*metadata.FileRecord, 0, len(entries))
	for _, entry := range entries {
		created, err := e.Create(ctx, tx, actor, CreateRequest{
			FileName:   entry.Name,
			Content:    entry.Data,
			IsPrivate:  rec.IsPrivate,
			Folder:     rec.Folder,
			AttachedTo: rec.AttachedTo,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}

	logger.Info("unzipped %s into %d files", rec.FileName, len(out))
	return out, nil
}
