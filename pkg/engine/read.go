package engine

import (
	"context"
	"time"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/permission"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// Get returns the record with the given ID if actor may read it.
func (e *Engine) Get(ctx context.Context, tx *txn.Tx, actor permission.Actor, id string) (*metadata.FileRecord, error) {
	return e.load(ctx, tx, actor, id, permission.Read)
}

// GetContent returns the bytes of a local file.
//
// Returns ErrMissingOnDisk when the record exists but its bytes are gone,
// and ErrInvalidArgument for folders and remote references.
func (e *Engine) GetContent(ctx context.Context, tx *txn.Tx, actor permission.Actor, id string) (data []byte, err error) {
	defer e.observe("GetContent", tx, time.Now(), &err)

	rec, err := e.load(ctx, tx, actor, id, permission.Read)
	if err != nil {
		return nil, err
	}
	return e.content(ctx, rec)
}

// content reads rec's bytes without a permission check.
func (e *Engine) content(ctx context.Context, rec *metadata.FileRecord) ([]byte, error) {
	if rec.IsFolder {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, rec.ID, "folders have no content")
	}
	if !rec.IsLocal() {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, rec.ID, "%s is stored by reference", rec.FileURL)
	}

	p, _, err := e.resolver.ResolveURL(rec.FileURL)
	if err != nil {
		return nil, err
	}
	return e.bytes.Read(ctx, p)
}

// List returns the children of a folder that actor may read.
func (e *Engine) List(ctx context.Context, tx *txn.Tx, actor permission.Actor, folderID string) (out []*metadata.FileRecord, err error) {
	defer e.observe("List", tx, time.Now(), &err)

	if folderID == "" {
		folderID = metadata.HomeFolder
	}
	if err := e.folders.EnsureRoots(ctx, tx); err != nil {
		return nil, err
	}

	parent, err := e.folders.Get(ctx, tx, folderID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(parent, permission.Read, actor); err != nil {
		return nil, err
	}

	children, err := e.folders.Children(ctx, tx, folderID)
	if err != nil {
		return nil, err
	}

	out = make([]*metadata.FileRecord, 0, len(children))
	for _, child := range children {
		if e.gate.HasPermission(child, permission.Read, actor) {
			out = append(out, child)
		}
	}
	return out, nil
}
