package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

const fileMode os.FileMode = 0644

// Write stores data at path and registers the undo operation with tx.
//
// Fresh files are linked into place from a synced temporary file, so a
// concurrent writer that got there first yields ErrAlreadyExists rather than
// being clobbered. Overwrites snapshot the original bytes and mode before the
// temporary file is renamed over the target.
//
// Context Cancellation:
// This operation checks the context before touching the filesystem.
//
// A finished tx is refused before anything is written.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - tx: Transaction receiving the undo operation (nil: no undo)
//   - path: Absolute destination inside the root
//   - data: Bytes to write
//   - overwrite: Whether an existing file may be replaced
//
// Returns:
//   - txn.Op: The registered undo operation (txn.FreshWrite or txn.Replace)
//   - error: txn.ErrDone, ErrPathTraversal, ErrAlreadyExists, ErrDiskFull,
//     ErrPermissionDenied, or a wrapped I/O error
func (w *FSWriter) Write(ctx context.Context, tx *txn.Tx, path string, data []byte, overwrite bool) (txn.Op, error) {
	// ========================================================================
	// Step 1: Check context and transaction, confine the path
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkActive(tx, "write", path); err != nil {
		return nil, err
	}
	if err := w.guard(path); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Snapshot the original when replacing in place
	// ========================================================================

	var op txn.Op = txn.FreshWrite{Path: path}

	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !overwrite {
			return nil, metadata.NewError(metadata.ErrAlreadyExists, path, "file already exists")
		}
		if !info.Mode().IsRegular() {
			return nil, metadata.NewError(metadata.ErrAlreadyExists, path, "path is not a regular file")
		}
		original, err := os.ReadFile(path)
		if err != nil {
			return nil, content.TranslateOSError("snapshot", path, err)
		}
		op = txn.Replace{Path: path, Original: original, Mode: info.Mode().Perm()}
	case !os.IsNotExist(err):
		return nil, content.TranslateOSError("stat", path, err)
	}

	// ========================================================================
	// Step 3: Write and sync a temporary file next to the target
	// ========================================================================

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, content.TranslateOSError("create directory", dir, err)
	}

	tmp, err := writeTemp(dir, data, fileMode)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(tmp) }()

	// ========================================================================
	// Step 4: Publish under the final name
	// ========================================================================

	if _, fresh := op.(txn.FreshWrite); fresh {
		err = os.Link(tmp, path)
	} else {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		return nil, content.TranslateOSError("write", path, err)
	}

	if err := syncDir(dir); err != nil {
		logger.Warn("fsync of %s failed: %v", dir, err)
	}

	if tx != nil {
		tx.RegisterRollback(op)
	}
	logger.Debug("wrote %d bytes to %s (%s)", len(data), path, op)
	return op, nil
}

// checkActive refuses work on behalf of a committed or aborted transaction.
// A nil tx is always accepted.
func checkActive(tx *txn.Tx, op, path string) error {
	if tx == nil {
		return nil
	}
	if state := tx.State(); state != txn.StateActive {
		return fmt.Errorf("%s %s on %s transaction: %w", op, path, state, txn.ErrDone)
	}
	return nil
}

// writeTemp writes data to a uniquely named synced file in dir.
func writeTemp(dir string, data []byte, mode os.FileMode) (string, error) {
	tmp := filepath.Join(dir, tempPrefix+uuid.NewString())

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return "", content.TranslateOSError("create", tmp, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", content.TranslateOSError("write", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", content.TranslateOSError("sync", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", content.TranslateOSError("close", tmp, err)
	}
	return tmp, nil
}

// syncDir flushes directory entries so a completed rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	return d.Sync()
}

// Move renames from to to and registers a txn.Move with tx.
//
// A single rename syscall is used whenever possible. Across filesystems
// (EXDEV) the bytes are copied to a synced temporary file next to the
// destination, renamed into place, and the source is removed.
//
// The destination's modification time is set to now: a moved file counts as
// freshly written until the records pointing at it commit. Undo restores the
// original time on the source.
func (w *FSWriter) Move(ctx context.Context, tx *txn.Tx, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkActive(tx, "move", from); err != nil {
		return err
	}
	if err := w.guard(from); err != nil {
		return err
	}
	if err := w.guard(to); err != nil {
		return err
	}

	info, err := os.Stat(from)
	if err != nil {
		return content.TranslateOSError("move", from, err)
	}
	if _, err := os.Lstat(to); err == nil {
		return metadata.NewError(metadata.ErrAlreadyExists, to, "move target already exists")
	}

	dir := filepath.Dir(to)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return content.TranslateOSError("create directory", dir, err)
	}

	err = os.Rename(from, to)
	if errors.Is(err, syscall.EXDEV) {
		logger.Debug("cross-device move %s -> %s, copying", from, to)
		err = copyAcross(from, to)
	}
	if err != nil {
		return content.TranslateOSError("move", to, err)
	}

	if err := syncDir(dir); err != nil {
		logger.Warn("fsync of %s failed: %v", dir, err)
	}

	if tx != nil {
		tx.RegisterRollback(txn.Move{From: from, To: to, ModTime: info.ModTime()})
	}

	now := time.Now()
	if err := os.Chtimes(to, now, now); err != nil {
		return content.TranslateOSError("touch", to, err)
	}

	logger.Debug("moved %s -> %s", from, to)
	return nil
}

func copyAcross(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	dir := filepath.Dir(to)
	tmp := filepath.Join(dir, tempPrefix+uuid.NewString())
	dst, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, to); err != nil {
		return err
	}
	return os.Remove(from)
}

// Remove deletes path after tx commits, or immediately when tx is nil.
//
// Deferred removal is best effort: a failure is logged and the stale bytes
// are left for garbage collection.
func (w *FSWriter) Remove(ctx context.Context, tx *txn.Tx, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkActive(tx, "remove", path); err != nil {
		return err
	}
	if err := w.guard(path); err != nil {
		return err
	}

	if tx == nil {
		return removeNow(path)
	}

	tx.AfterCommit(func(context.Context) {
		if err := removeNow(path); err != nil {
			logger.Warn("failed to remove %s after commit, leaving stale bytes: %v", path, err)
		}
	})
	return nil
}

func removeNow(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return content.TranslateOSError("remove", path, err)
	}
	logger.Debug("removed %s", path)
	return nil
}
