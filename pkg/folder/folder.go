// Package folder maintains the folder tree files are namespaced under.
//
// Folder identities are paths: a folder's ID is its parent's ID joined with
// its own name ("Home/Invoices/2024"). Renaming or moving a folder therefore
// re-keys the folder and every descendant folder, and re-points every file
// inside them.
//
// Two folders are protected and created lazily: "Home", the root, and
// "Home/Attachments", the default home of files attached to a document.
package folder

import (
	"context"
	"strings"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// Hierarchy manages folder records in a metadata.Store.
type Hierarchy struct {
	store metadata.Store
	now   func() time.Time
}

// New creates a Hierarchy over store.
func New(store metadata.Store) *Hierarchy {
	return &Hierarchy{store: store, now: time.Now}
}

// JoinName builds the identity of leaf inside parent.
func JoinName(parent, leaf string) string {
	if parent == "" {
		return leaf
	}
	return parent + "/" + leaf
}

// IsWithin reports whether id is ancestor itself or lies beneath it.
func IsWithin(id, ancestor string) bool {
	return id == ancestor || strings.HasPrefix(id, ancestor+"/")
}

// DefaultFolder returns where a file without an explicit folder is placed.
func DefaultFolder(attached bool) string {
	if attached {
		return metadata.AttachmentsFolder
	}
	return metadata.HomeFolder
}

// EnsureRoots creates Home and Home/Attachments if they are missing.
func (h *Hierarchy) EnsureRoots(ctx context.Context, tx *txn.Tx) error {
	roots := []*metadata.FileRecord{
		{ID: metadata.HomeFolder, FileName: metadata.HomeFolder, IsFolder: true, IsHomeFolder: true},
		{ID: metadata.AttachmentsFolder, FileName: "Attachments", IsFolder: true, IsAttachmentsFolder: true, Folder: metadata.HomeFolder},
	}

	for _, root := range roots {
		_, err := h.store.GetFile(ctx, tx, root.ID)
		if err == nil {
			continue
		}
		if !metadata.IsErrorCode(err, metadata.ErrNotFound) {
			return err
		}

		now := h.now()
		root.CreatedAt, root.ModifiedAt = now, now
		if err := h.store.PutFile(ctx, tx, root); err != nil {
			return err
		}
		logger.Info("created folder %s", root.ID)
	}
	return nil
}

// Get returns the folder with the given ID.
//
// Returns ErrNotFound if it doesn't exist and ErrInvalidArgument if the
// record is a file.
func (h *Hierarchy) Get(ctx context.Context, tx *txn.Tx, id string) (*metadata.FileRecord, error) {
	rec, err := h.store.GetFile(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsFolder {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, id, "not a folder")
	}
	return rec, nil
}

// Create adds a folder named leaf under parent.
//
// The parent defaults to Home. Returns ErrAlreadyExists if the identity is
// taken.
func (h *Hierarchy) Create(ctx context.Context, tx *txn.Tx, leaf, parent, owner string) (*metadata.FileRecord, error) {
	name, err := location.ValidateFileName(leaf)
	if err != nil {
		return nil, err
	}
	if parent == "" {
		parent = metadata.HomeFolder
	}

	if err := h.EnsureRoots(ctx, tx); err != nil {
		return nil, err
	}
	if _, err := h.Get(ctx, tx, parent); err != nil {
		return nil, err
	}

	id := JoinName(parent, name)
	if _, err := h.store.GetFile(ctx, tx, id); err == nil {
		return nil, metadata.NewError(metadata.ErrAlreadyExists, id, "folder already exists")
	} else if !metadata.IsErrorCode(err, metadata.ErrNotFound) {
		return nil, err
	}

	now := h.now()
	rec := &metadata.FileRecord{
		ID:         id,
		FileName:   name,
		IsFolder:   true,
		Folder:     parent,
		Owner:      owner,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := h.store.PutFile(ctx, tx, rec); err != nil {
		return nil, err
	}

	logger.Debug("created folder %s", id)
	return rec, nil
}

// Children lists the direct children of a folder.
func (h *Hierarchy) Children(ctx context.Context, tx *txn.Tx, id string) ([]*metadata.FileRecord, error) {
	if _, err := h.Get(ctx, tx, id); err != nil {
		return nil, err
	}
	return h.store.ListChildren(ctx, tx, id)
}

// Delete removes an empty, unprotected folder.
func (h *Hierarchy) Delete(ctx context.Context, tx *txn.Tx, id string) error {
	rec, err := h.Get(ctx, tx, id)
	if err != nil {
		return err
	}
	if rec.IsProtectedFolder() {
		return metadata.NewError(metadata.ErrProtectedFolder, id, "folder cannot be deleted")
	}

	children, err := h.store.ListChildren(ctx, tx, id)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return metadata.NewError(metadata.ErrFolderNotEmpty, id, "folder has %d children", len(children))
	}

	return h.store.DeleteFile(ctx, tx, id)
}

// Rename gives a folder a new leaf name, cascading to every descendant.
func (h *Hierarchy) Rename(ctx context.Context, tx *txn.Tx, id, newLeaf string) (*metadata.FileRecord, error) {
	rec, err := h.Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if rec.IsProtectedFolder() {
		return nil, metadata.NewError(metadata.ErrProtectedFolder, id, "folder cannot be renamed")
	}

	name, err := location.ValidateFileName(newLeaf)
	if err != nil {
		return nil, err
	}
	if name == rec.FileName {
		return rec, nil
	}

	return h.relocate(ctx, tx, rec, rec.Folder, name)
}

// Move places a folder under newParent, cascading to every descendant.
//
// Moving a folder into itself or one of its descendants is rejected with
// ErrInvalidArgument.
func (h *Hierarchy) Move(ctx context.Context, tx *txn.Tx, id, newParent string) (*metadata.FileRecord, error) {
	rec, err := h.Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if rec.IsProtectedFolder() {
		return nil, metadata.NewError(metadata.ErrProtectedFolder, id, "folder cannot be moved")
	}
	if IsWithin(newParent, id) {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, newParent, "cannot move %s into itself", id)
	}
	if _, err := h.Get(ctx, tx, newParent); err != nil {
		return nil, err
	}
	if newParent == rec.Folder {
		return rec, nil
	}

	return h.relocate(ctx, tx, rec, newParent, rec.FileName)
}

// relocate re-keys rec as JoinName(parent, leaf) and carries its subtree.
func (h *Hierarchy) relocate(ctx context.Context, tx *txn.Tx, rec *metadata.FileRecord, parent, leaf string) (*metadata.FileRecord, error) {
	newID := JoinName(parent, leaf)
	if _, err := h.store.GetFile(ctx, tx, newID); err == nil {
		return nil, metadata.NewError(metadata.ErrAlreadyExists, newID, "folder already exists")
	} else if !metadata.IsErrorCode(err, metadata.ErrNotFound) {
		return nil, err
	}

	moved := rec.Clone()
	moved.ID = newID
	moved.FileName = leaf
	moved.Folder = parent
	moved.ModifiedAt = h.now()
	if err := h.store.PutFile(ctx, tx, moved); err != nil {
		return nil, err
	}

	children, err := h.store.ListChildren(ctx, tx, rec.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if child.IsFolder {
			if _, err := h.relocate(ctx, tx, child, newID, child.FileName); err != nil {
				return nil, err
			}
			continue
		}
		child.Folder = newID
		if err := h.store.PutFile(ctx, tx, child); err != nil {
			return nil, err
		}
	}

	if err := h.store.DeleteFile(ctx, tx, rec.ID); err != nil {
		return nil, err
	}

	logger.Debug("folder %s is now %s (%d children)", rec.ID, newID, len(children))
	return moved, nil
}
