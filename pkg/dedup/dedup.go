// Package dedup finds existing on-disk bytes for a content hash so identical
// uploads in the same privacy scope share one physical file.
//
// The lookup is not atomic with the write that may follow it: two
// transactions storing identical bytes concurrently can both miss and both
// write. The outcome is two files holding the same bytes under different
// names, which is harmless, so no lock is taken.
package dedup

import (
	"context"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// Index answers "do we already hold these bytes?" over the metadata store.
type Index struct {
	store    metadata.Store
	resolver *location.Resolver
	bytes    content.Writer
}

// New creates an Index.
func New(store metadata.Store, resolver *location.Resolver, bytes content.Writer) *Index {
	return &Index{store: store, resolver: resolver, bytes: bytes}
}

// Find returns the oldest non-folder record with the given hash and privacy
// flag, other than excludeID, whose bytes still exist on disk.
//
// A record whose bytes are missing is not a match: the caller writes fresh
// bytes instead. Returns (nil, nil) when nothing matches.
func (x *Index) Find(ctx context.Context, tx *txn.Tx, hash string, isPrivate bool, excludeID string) (*metadata.FileRecord, error) {
	if hash == "" {
		return nil, nil
	}

	candidates, err := x.store.FindByHash(ctx, tx, hash, isPrivate)
	if err != nil {
		return nil, err
	}

	for _, rec := range candidates {
		if rec.ID == excludeID || !rec.IsLocal() {
			continue
		}

		ok, err := x.ExistsOnDisk(ctx, rec)
		if err != nil {
			return nil, err
		}
		if !ok {
			logger.Debug("dedup: %s matches hash %s but %s is missing on disk", rec.ID, hash, rec.FileURL)
			continue
		}
		return rec, nil
	}
	return nil, nil
}

// ExistsOnDisk reports whether rec's bytes are present.
func (x *Index) ExistsOnDisk(ctx context.Context, rec *metadata.FileRecord) (bool, error) {
	if !rec.IsLocal() {
		return false, nil
	}
	path, _, err := x.resolver.ResolveURL(rec.FileURL)
	if err != nil {
		return false, err
	}
	return x.bytes.Exists(ctx, path)
}

// Aliases returns every other record pointing at the same bytes as rec.
func (x *Index) Aliases(ctx context.Context, tx *txn.Tx, rec *metadata.FileRecord) ([]*metadata.FileRecord, error) {
	if !rec.IsLocal() {
		return nil, nil
	}
	all, err := x.store.FindByURL(ctx, tx, rec.FileURL)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, r := range all {
		if r.ID != rec.ID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Referenced reports whether any record other than excludeID uses fileURL
// as its content or thumbnail.
func (x *Index) Referenced(ctx context.Context, tx *txn.Tx, fileURL, excludeID string) (bool, error) {
	byURL, err := x.store.FindByURL(ctx, tx, fileURL)
	if err != nil {
		return false, err
	}
	byThumb, err := x.store.FindByThumbnailURL(ctx, tx, fileURL)
	if err != nil {
		return false, err
	}

	for _, r := range append(byURL, byThumb...) {
		if r.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}
