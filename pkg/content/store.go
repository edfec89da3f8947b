package content

import (
	"context"
	"time"

	"github.com/marmos91/dittofiles/pkg/txn"
)

// Writer is the transactional byte store the file engine writes through.
//
// Every mutating call takes the document transaction it belongs to and
// registers the matching undo operation with it, so aborting the transaction
// restores the exact prior on-disk state. A nil transaction applies changes
// immediately with nothing to undo.
//
// Paths are absolute and must lie inside the writer's site root;
// implementations reject anything else with ErrPathTraversal.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Concurrent writers to the
// same path are not serialized: the last rename wins.
type Writer interface {
	// Write stores data at path, synced to stable storage.
	//
	// If path exists and overwrite is false, returns ErrAlreadyExists. If
	// overwrite is true the original bytes are snapshotted first and a
	// txn.Replace is registered; otherwise a txn.FreshWrite is registered.
	Write(ctx context.Context, tx *txn.Tx, path string, data []byte, overwrite bool) (txn.Op, error)

	// Move renames from to to with a single rename syscall when both are on
	// the same filesystem, registering a txn.Move.
	//
	// Returns ErrAlreadyExists if to exists and ErrMissingOnDisk if from
	// does not.
	Move(ctx context.Context, tx *txn.Tx, from, to string) error

	// Remove deletes path once tx commits (immediately when tx is nil).
	// Removal after commit is best effort: failures are logged, not returned.
	Remove(ctx context.Context, tx *txn.Tx, path string) error

	// Read returns the bytes at path or ErrMissingOnDisk.
	Read(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether a regular file is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the names of regular files directly inside dir.
	List(ctx context.Context, dir string) ([]string, error)

	// ModTime returns the last modification time of path or ErrMissingOnDisk.
	ModTime(ctx context.Context, path string) (time.Time, error)
}
