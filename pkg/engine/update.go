package engine

import (
	"context"
	"time"

	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/folder"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/permission"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// CreateFolder adds a folder named name under parent (Home when empty).
func (e *Engine) CreateFolder(ctx context.Context, tx *txn.Tx, actor permission.Actor, name, parent string) (rec *metadata.FileRecord, err error) {
	defer e.observe("CreateFolder", tx, time.Now(), &err)

	if parent == "" {
		parent = metadata.HomeFolder
	}
	draft := &metadata.FileRecord{
		ID:       folder.JoinName(parent, name),
		FileName: name,
		IsFolder: true,
		Folder:   parent,
		Owner:    actor.User,
	}
	if err := e.authorize(draft, permission.Create, actor); err != nil {
		return nil, err
	}
	return e.folders.Create(ctx, tx, name, parent, actor.User)
}

// Rename changes a record's display name.
//
// Renaming a folder re-keys it and every descendant. Renaming a file only
// changes FileName: the on-disk name stays, since other records may share it.
func (e *Engine) Rename(ctx context.Context, tx *txn.Tx, actor permission.Actor, id, newName string) (rec *metadata.FileRecord, err error) {
	defer e.observe("Rename", tx, time.Now(), &err)

	rec, err = e.load(ctx, tx, actor, id, permission.Write)
	if err != nil {
		return nil, err
	}
	if rec.IsFolder {
		return e.folders.Rename(ctx, tx, id, newName)
	}

	name, err := location.ValidateFileName(newName)
	if err != nil {
		return nil, err
	}
	if name == rec.FileName {
		return rec, nil
	}

	rec.FileName = name
	rec.ModifiedAt = e.now()
	if err := e.store.PutFile(ctx, tx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Move places a record under another folder.
func (e *Engine) Move(ctx context.Context, tx *txn.Tx, actor permission.Actor, id, newFolder string) (rec *metadata.FileRecord, err error) {
	defer e.observe("Move", tx, time.Now(), &err)

	rec, err = e.load(ctx, tx, actor, id, permission.Write)
	if err != nil {
		return nil, err
	}
	if rec.IsFolder {
		return e.folders.Move(ctx, tx, id, newFolder)
	}

	if _, err := e.folders.Get(ctx, tx, newFolder); err != nil {
		return nil, err
	}
	if rec.Folder == newFolder {
		return rec, nil
	}

	rec.Folder = newFolder
	rec.ModifiedAt = e.now()
	if err := e.store.PutFile(ctx, tx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SetPrivate moves a file into the private (true) or public (false) scope.
//
// The bytes are moved with one rename, every record sharing them follows,
// and owner documents referencing the old URL are updated.
func (e *Engine) SetPrivate(ctx context.Context, tx *txn.Tx, actor permission.Actor, id string, isPrivate bool) (rec *metadata.FileRecord, err error) {
	defer e.observe("SetPrivate", tx, time.Now(), &err)

	rec, err = e.load(ctx, tx, actor, id, permission.Write)
	if err != nil {
		return nil, err
	}
	return e.privacy.SetPrivate(ctx, tx, rec, isPrivate)
}
