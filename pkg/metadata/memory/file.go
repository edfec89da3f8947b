package memory

import (
	"context"
	"sort"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// GetFile returns a copy of the record with the given ID.
func (s *MemoryMetadataStore) GetFile(ctx context.Context, _ *txn.Tx, id string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[id]
	if !ok {
		return nil, metadata.NewError(metadata.ErrNotFound, id, "file record not found")
	}
	return rec.Clone(), nil
}

// PutFile inserts or replaces a record.
func (s *MemoryMetadataStore) PutFile(ctx context.Context, tx *txn.Tx, rec *metadata.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return metadata.NewError(metadata.ErrInvalidArgument, "", "file record has no id")
	}
	if err := writable(tx); err != nil {
		return err
	}
	rec.AssertConsistent()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal(tx, rec.ID)
	s.files[rec.ID] = rec.Clone()
	return nil
}

// DeleteFile removes a record.
func (s *MemoryMetadataStore) DeleteFile(ctx context.Context, tx *txn.Tx, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writable(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return metadata.NewError(metadata.ErrNotFound, id, "file record not found")
	}
	s.journal(tx, id)
	delete(s.files, id)
	return nil
}

// FindByHash returns non-folder records sharing hash within a privacy scope.
func (s *MemoryMetadataStore) FindByHash(ctx context.Context, _ *txn.Tx, hash string, isPrivate bool) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(r *metadata.FileRecord) bool {
		return !r.IsFolder && r.ContentHash == hash && r.IsPrivate == isPrivate
	}), nil
}

// FindByURL returns every record with the given FileURL.
func (s *MemoryMetadataStore) FindByURL(ctx context.Context, _ *txn.Tx, fileURL string) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fileURL == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(r *metadata.FileRecord) bool {
		return r.FileURL == fileURL
	}), nil
}

// FindByThumbnailURL returns every record with the given ThumbnailURL.
func (s *MemoryMetadataStore) FindByThumbnailURL(ctx context.Context, _ *txn.Tx, thumbURL string) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if thumbURL == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(r *metadata.FileRecord) bool {
		return r.ThumbnailURL == thumbURL
	}), nil
}

// ListChildren returns the direct children of folder ordered by ID.
func (s *MemoryMetadataStore) ListChildren(ctx context.Context, _ *txn.Tx, folder string) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filter(func(r *metadata.FileRecord) bool {
		return r.Folder == folder && r.ID != folder
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CountAttachments counts non-folder records attached to doctype/name.
func (s *MemoryMetadataStore) CountAttachments(ctx context.Context, _ *txn.Tx, doctype, name string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.files {
		if r.IsFolder || r.AttachedTo == nil {
			continue
		}
		if r.AttachedTo.Doctype == doctype && r.AttachedTo.Name == name {
			n++
		}
	}
	return n, nil
}

// ListAll returns every record.
func (s *MemoryMetadataStore) ListAll(ctx context.Context, _ *txn.Tx) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(*metadata.FileRecord) bool { return true }), nil
}
