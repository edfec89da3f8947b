package metadata

import (
	"context"

	"github.com/marmos91/dittofiles/pkg/txn"
)

// Store persists FileRecords and the secondary indexes the engine queries.
//
// Every method takes the document transaction the call belongs to. A store
// binds its own atomicity to that transaction through txn hooks: writes made
// under tx become durable when tx commits and vanish when it aborts. A nil tx
// means "autocommit": reads see committed state and writes are applied
// immediately.
//
// Records returned by a Store are copies; mutating them has no effect until
// they are passed back to PutFile.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines and
// multiple transactions. A single transaction is used by one goroutine at a time.
type Store interface {
	// GetFile returns the record with the given ID.
	//
	// Returns a StoreError with ErrNotFound if no such record exists.
	GetFile(ctx context.Context, tx *txn.Tx, id string) (*FileRecord, error)

	// PutFile inserts or replaces a record and refreshes its index entries.
	//
	// Implementations call rec.AssertConsistent() before writing.
	PutFile(ctx context.Context, tx *txn.Tx, rec *FileRecord) error

	// DeleteFile removes a record and its index entries.
	//
	// Returns a StoreError with ErrNotFound if no such record exists.
	DeleteFile(ctx context.Context, tx *txn.Tx, id string) error

	// FindByHash returns non-folder records with the given content hash and
	// privacy flag, ordered by creation time.
	FindByHash(ctx context.Context, tx *txn.Tx, hash string, isPrivate bool) ([]*FileRecord, error)

	// FindByURL returns every record whose FileURL equals fileURL.
	FindByURL(ctx context.Context, tx *txn.Tx, fileURL string) ([]*FileRecord, error)

	// FindByThumbnailURL returns every record whose ThumbnailURL equals thumbURL.
	FindByThumbnailURL(ctx context.Context, tx *txn.Tx, thumbURL string) ([]*FileRecord, error)

	// ListChildren returns the direct children of a folder, ordered by ID.
	ListChildren(ctx context.Context, tx *txn.Tx, folder string) ([]*FileRecord, error)

	// CountAttachments returns the number of non-folder records attached to
	// the given owner document (any field).
	CountAttachments(ctx context.Context, tx *txn.Tx, doctype, name string) (int, error)

	// ListAll returns every record. Used by garbage collection.
	ListAll(ctx context.Context, tx *txn.Tx) ([]*FileRecord, error)

	// Healthcheck verifies the store is operational.
	Healthcheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
