package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// getRecord loads a record inside bt. Returns (nil, nil) when absent.
func getRecord(bt *badger.Txn, id string) (*metadata.FileRecord, error) {
	item, err := bt.Get(keyFile(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

	var rec *metadata.FileRecord
	err = item.Value(func(val []byte) error {
		var decodeErr error
		rec, decodeErr = decodeRecord(val)
		return decodeErr
	})
	return rec, err
}

// scanIDs collects the record IDs under an index prefix. The iterator is
// closed before returning: a read-write badger transaction allows only one
// open iterator at a time.
func scanIDs(bt *badger.Txn, prefix []byte) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := bt.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		ids = append(ids, idFromIndexKey(it.Item().KeyCopy(nil)))
	}
	return ids
}

// loadAll resolves IDs to records, skipping dangling index entries.
func loadAll(bt *badger.Txn, ids []string) ([]*metadata.FileRecord, error) {
	out := make([]*metadata.FileRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := getRecord(bt, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *BadgerMetadataStore) findByPrefix(ctx context.Context, tx *txn.Tx, prefix []byte) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*metadata.FileRecord
	err := s.view(tx, func(bt *badger.Txn) error {
		var err error
		out, err = loadAll(bt, scanIDs(bt, prefix))
		return err
	})
	if err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(recs []*metadata.FileRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

// GetFile returns the record with the given ID.
func (s *BadgerMetadataStore) GetFile(ctx context.Context, tx *txn.Tx, id string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *metadata.FileRecord
	err := s.view(tx, func(bt *badger.Txn) error {
		var err error
		rec, err = getRecord(bt, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, metadata.NewError(metadata.ErrNotFound, id, "file record not found")
	}
	return rec, nil
}

// PutFile inserts or replaces a record, rewriting its index entries.
func (s *BadgerMetadataStore) PutFile(ctx context.Context, tx *txn.Tx, rec *metadata.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return metadata.NewError(metadata.ErrInvalidArgument, "", "file record has no id")
	}
	rec.AssertConsistent()

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	return s.update(tx, func(bt *badger.Txn) error {
		prev, err := getRecord(bt, rec.ID)
		if err != nil {
			return err
		}
		if prev != nil {
			for _, k := range indexKeys(prev) {
				if err := bt.Delete(k); err != nil {
					return fmt.Errorf("drop index for %s: %w", rec.ID, err)
				}
			}
		}

		if err := bt.Set(keyFile(rec.ID), data); err != nil {
			return fmt.Errorf("put record %s: %w", rec.ID, err)
		}
		for _, k := range indexKeys(rec) {
			if err := bt.Set(k, nil); err != nil {
				return fmt.Errorf("index record %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// DeleteFile removes a record and its index entries.
func (s *BadgerMetadataStore) DeleteFile(ctx context.Context, tx *txn.Tx, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.update(tx, func(bt *badger.Txn) error {
		prev, err := getRecord(bt, id)
		if err != nil {
			return err
		}
		if prev == nil {
			return metadata.NewError(metadata.ErrNotFound, id, "file record not found")
		}

		for _, k := range indexKeys(prev) {
			if err := bt.Delete(k); err != nil {
				return fmt.Errorf("drop index for %s: %w", id, err)
			}
		}
		if err := bt.Delete(keyFile(id)); err != nil {
			return fmt.Errorf("delete record %s: %w", id, err)
		}
		return nil
	})
}

// FindByHash returns non-folder records sharing hash within a privacy scope.
func (s *BadgerMetadataStore) FindByHash(ctx context.Context, tx *txn.Tx, hash string, isPrivate bool) ([]*metadata.FileRecord, error) {
	if hash == "" {
		return nil, ctx.Err()
	}
	return s.findByPrefix(ctx, tx, prefixHashScope(hash, isPrivate))
}

// FindByURL returns every record with the given FileURL.
func (s *BadgerMetadataStore) FindByURL(ctx context.Context, tx *txn.Tx, fileURL string) ([]*metadata.FileRecord, error) {
	if fileURL == "" {
		return nil, ctx.Err()
	}
	return s.findByPrefix(ctx, tx, prefixURLValue(fileURL))
}

// FindByThumbnailURL returns every record with the given ThumbnailURL.
func (s *BadgerMetadataStore) FindByThumbnailURL(ctx context.Context, tx *txn.Tx, thumbURL string) ([]*metadata.FileRecord, error) {
	if thumbURL == "" {
		return nil, ctx.Err()
	}
	return s.findByPrefix(ctx, tx, prefixThumbnailValue(thumbURL))
}

// ListChildren returns the direct children of folder ordered by ID.
func (s *BadgerMetadataStore) ListChildren(ctx context.Context, tx *txn.Tx, folder string) ([]*metadata.FileRecord, error) {
	out, err := s.findByPrefix(ctx, tx, prefixChildren(folder))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CountAttachments counts non-folder records attached to doctype/name.
func (s *BadgerMetadataStore) CountAttachments(ctx context.Context, tx *txn.Tx, doctype, name string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := s.view(tx, func(bt *badger.Txn) error {
		n = len(scanIDs(bt, prefixAttachmentOwner(doctype, name)))
		return nil
	})
	return n, err
}

// ListAll returns every record.
func (s *BadgerMetadataStore) ListAll(ctx context.Context, tx *txn.Tx) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*metadata.FileRecord
	err := s.view(tx, func(bt *badger.Txn) error {
		prefix := []byte(prefixFile)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := bt.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}
