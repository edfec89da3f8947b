package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// MemoryMetadataStore implements metadata.Store using in-memory maps.
//
// This implementation is suitable for:
//   - Testing and development environments
//   - Ephemeral deployments where metadata persistence is handled elsewhere
//
// Transactions:
// Writes are applied to the shared maps immediately. For every write made
// under a transaction the previous value is journalled through tx.OnAbort, so
// an aborted transaction restores the exact prior state. Other transactions
// may observe uncommitted writes (read-uncommitted isolation); the engine only
// relies on a single writer per record.
//
// Thread Safety:
// All operations are protected by a single read-write mutex.
type MemoryMetadataStore struct {
	mu    sync.RWMutex
	files map[string]*metadata.FileRecord
}

// NewMemoryMetadataStore creates an empty store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		files: make(map[string]*metadata.FileRecord),
	}
}

// writable rejects writes under a finished transaction.
func writable(tx *txn.Tx) error {
	if tx != nil && tx.State() != txn.StateActive {
		return fmt.Errorf("memory metadata store: write on %s transaction %s", tx.State(), tx.ID())
	}
	return nil
}

// journal registers an abort hook restoring id to prev (nil means absent).
// Must be called with mu held.
func (s *MemoryMetadataStore) journal(tx *txn.Tx, id string) {
	if tx == nil {
		return
	}
	prev := s.files[id].Clone()
	tx.OnAbort(func(context.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if prev == nil {
			delete(s.files, id)
			return
		}
		s.files[id] = prev
	})
}

// filter returns clones of every record matching keep.
// Must be called with mu held (read or write).
func (s *MemoryMetadataStore) filter(keep func(*metadata.FileRecord) bool) []*metadata.FileRecord {
	out := make([]*metadata.FileRecord, 0)
	for _, rec := range s.files {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	sortRecords(out)
	return out
}

// sortRecords orders records by creation time, then ID, for stable results.
func sortRecords(recs []*metadata.FileRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

// Healthcheck always succeeds for the in-memory store.
func (s *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *MemoryMetadataStore) Close() error {
	return nil
}

var _ metadata.Store = (*MemoryMetadataStore)(nil)
