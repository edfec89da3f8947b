// Package document is the file engine's view of the external document store:
// the owner documents files are attached to.
//
// The engine only ever needs one thing from it: when a file's URL changes,
// rewrite the owner field that still references the old URL.
package document

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// FieldUpdater rewrites owner-document fields that hold file URLs.
type FieldUpdater interface {
	// ReplaceURL sets owner's field to newURL if it currently holds oldURL.
	// It reports whether the field was changed.
	ReplaceURL(ctx context.Context, tx *txn.Tx, owner metadata.Attachment, oldURL, newURL string) (bool, error)
}

// Noop ignores every update. Used when no document store is wired in.
type Noop struct{}

func (Noop) ReplaceURL(context.Context, *txn.Tx, metadata.Attachment, string, string) (bool, error) {
	return false, nil
}

// MemoryStore keeps owner fields in memory, keyed by doctype/name/field.
//
// Updates made under a transaction are undone when it aborts.
type MemoryStore struct {
	mu     sync.RWMutex
	fields map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fields: make(map[string]string)}
}

func fieldKey(a metadata.Attachment) string {
	return a.Doctype + "\x00" + a.Name + "\x00" + a.Field
}

// Set stores value in owner's field outside any transaction.
func (s *MemoryStore) Set(owner metadata.Attachment, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[fieldKey(owner)] = value
}

// Get returns owner's field value.
func (s *MemoryStore) Get(owner metadata.Attachment) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.fields[fieldKey(owner)]
	return v, ok
}

// ReplaceURL implements FieldUpdater.
func (s *MemoryStore) ReplaceURL(ctx context.Context, tx *txn.Tx, owner metadata.Attachment, oldURL, newURL string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if owner.Field == "" {
		return false, fmt.Errorf("owner %s has no field", owner)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := fieldKey(owner)
	current, ok := s.fields[key]
	if !ok || current != oldURL {
		return false, nil
	}
	s.fields[key] = newURL

	if tx != nil {
		tx.OnAbort(func(context.Context) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.fields[key] == newURL {
				s.fields[key] = oldURL
			}
		})
	}
	return true, nil
}

var (
	_ FieldUpdater = Noop{}
	_ FieldUpdater = (*MemoryStore)(nil)
)
