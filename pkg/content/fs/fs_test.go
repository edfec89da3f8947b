package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) (*FSWriter, string) {
	t.Helper()
	root := t.TempDir()
	files := filepath.Join(root, "public", "files")
	w, err := NewFSWriter(context.Background(), root, files, filepath.Join(root, "private", "files"))
	require.NoError(t, err)
	return w, files
}

func TestNewFSWriter_CreatesPartitions(t *testing.T) {
	_, files := newTestWriter(t)

	info, err := os.Stat(files)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWrite_FreshThenAbort(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()
	path := filepath.Join(files, "a.txt")

	tx := txn.Begin()
	op, err := w.Write(ctx, tx, path, []byte("Hello"), false)
	require.NoError(t, err)
	assert.Equal(t, txn.FreshWrite{Path: path}, op)

	data, err := w.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(data))

	require.NoError(t, tx.Abort(ctx))

	exists, err := w.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWrite_FreshThenCommit(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()
	path := filepath.Join(files, "a.txt")

	tx := txn.Begin()
	_, err := w.Write(ctx, tx, path, []byte("Hello"), false)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	exists, err := w.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWrite_ExistingWithoutOverwrite(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()
	path := filepath.Join(files, "a.txt")

	_, err := w.Write(ctx, nil, path, []byte("one"), false)
	require.NoError(t, err)

	_, err = w.Write(ctx, nil, path, []byte("two"), false)
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrAlreadyExists), "got %v", err)

	data, err := w.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestWrite_ReplaceThenAbortRestores(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()
	path := filepath.Join(files, "a.txt")

	_, err := w.Write(ctx, nil, path, []byte("original"), false)
	require.NoError(t, err)
	require.NoError(t, os.Chmod(path, 0600))

	tx := txn.Begin()
	op, err := w.Write(ctx, tx, path, []byte("replacement"), true)
	require.NoError(t, err)
	replace, ok := op.(txn.Replace)
	require.True(t, ok)
	assert.Equal(t, "original", string(replace.Original))

	require.NoError(t, tx.Abort(ctx))

	data, err := w.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWrite_RejectsOutsideRoot(t *testing.T) {
	w, _ := newTestWriter(t)

	_, err := w.Write(context.Background(), nil, filepath.Join(w.Root(), "..", "escape.txt"), []byte("x"), false)
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrPathTraversal), "got %v", err)
}

func TestWrite_RejectsSymlinkEscape(t *testing.T) {
	w, files := newTestWriter(t)
	outside := t.TempDir()

	link := filepath.Join(files, "link")
	require.NoError(t, os.Symlink(outside, link))

	_, err := w.Write(context.Background(), nil, filepath.Join(link, "a.txt"), []byte("x"), false)
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrPathTraversal), "got %v", err)

	_, statErr := os.Stat(filepath.Join(outside, "a.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMove_ThenAbort(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()
	from := filepath.Join(files, "a.txt")
	to := filepath.Join(w.Root(), "private", "files", "a.txt")

	_, err := w.Write(ctx, nil, from, []byte("Hello"), false)
	require.NoError(t, err)

	tx := txn.Begin()
	require.NoError(t, w.Move(ctx, tx, from, to))

	exists, _ := w.Exists(ctx, from)
	assert.False(t, exists)
	exists, _ = w.Exists(ctx, to)
	assert.True(t, exists)

	require.NoError(t, tx.Abort(ctx))

	exists, _ = w.Exists(ctx, from)
	assert.True(t, exists)
	exists, _ = w.Exists(ctx, to)
	assert.False(t, exists)
}

func TestMove_RefreshesModTime(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()
	from := filepath.Join(files, "a.txt")
	to := filepath.Join(w.Root(), "private", "files", "a.txt")

	_, err := w.Write(ctx, nil, from, []byte("Hello"), false)
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(from, past, past))

	tx := txn.Begin()
	require.NoError(t, w.Move(ctx, tx, from, to))

	moved, err := w.ModTime(ctx, to)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), moved, time.Minute)

	require.NoError(t, tx.Abort(ctx))

	restored, err := w.ModTime(ctx, from)
	require.NoError(t, err)
	assert.True(t, restored.Equal(past), "mtime %v, want %v", restored, past)
}

func TestFinishedTransaction_TouchesNothing(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()
	a := filepath.Join(files, "a.txt")
	b := filepath.Join(files, "b.txt")

	_, err := w.Write(ctx, nil, a, []byte("a"), false)
	require.NoError(t, err)

	tx := txn.Begin()
	require.NoError(t, tx.Commit(ctx))

	_, err = w.Write(ctx, tx, b, []byte("b"), false)
	assert.ErrorIs(t, err, txn.ErrDone)
	exists, _ := w.Exists(ctx, b)
	assert.False(t, exists)

	assert.ErrorIs(t, w.Move(ctx, tx, a, b), txn.ErrDone)
	exists, _ = w.Exists(ctx, a)
	assert.True(t, exists)

	assert.ErrorIs(t, w.Remove(ctx, tx, a), txn.ErrDone)
	exists, _ = w.Exists(ctx, a)
	assert.True(t, exists)
}

func TestMove_Errors(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()
	a := filepath.Join(files, "a.txt")
	b := filepath.Join(files, "b.txt")

	err := w.Move(ctx, nil, a, b)
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrMissingOnDisk), "got %v", err)

	_, err = w.Write(ctx, nil, a, []byte("a"), false)
	require.NoError(t, err)
	_, err = w.Write(ctx, nil, b, []byte("b"), false)
	require.NoError(t, err)

	err = w.Move(ctx, nil, a, b)
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrAlreadyExists), "got %v", err)
}

func TestRemove_DeferredUntilCommit(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()
	path := filepath.Join(files, "a.txt")

	_, err := w.Write(ctx, nil, path, []byte("Hello"), false)
	require.NoError(t, err)

	aborted := txn.Begin()
	require.NoError(t, w.Remove(ctx, aborted, path))
	require.NoError(t, aborted.Abort(ctx))
	exists, _ := w.Exists(ctx, path)
	assert.True(t, exists, "abort must not lose bytes")

	committed := txn.Begin()
	require.NoError(t, w.Remove(ctx, committed, path))
	exists, _ = w.Exists(ctx, path)
	assert.True(t, exists, "removal waits for commit")

	require.NoError(t, committed.Commit(ctx))
	exists, _ = w.Exists(ctx, path)
	assert.False(t, exists)
}

func TestRemove_MissingIsNotAnError(t *testing.T) {
	w, files := newTestWriter(t)

	require.NoError(t, w.Remove(context.Background(), nil, filepath.Join(files, "missing.txt")))
}

func TestRead_Missing(t *testing.T) {
	w, files := newTestWriter(t)

	_, err := w.Read(context.Background(), filepath.Join(files, "missing.txt"))
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrMissingOnDisk), "got %v", err)
}

func TestModTime(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()
	path := filepath.Join(files, "a.txt")

	_, err := w.ModTime(ctx, path)
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrMissingOnDisk))

	_, err = w.Write(ctx, nil, path, []byte("Hello"), false)
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, past, past))

	mtime, err := w.ModTime(ctx, path)
	require.NoError(t, err)
	assert.True(t, past.Equal(mtime))
}

func TestList_SkipsTempAndDirs(t *testing.T) {
	w, files := newTestWriter(t)
	ctx := context.Background()

	_, err := w.Write(ctx, nil, filepath.Join(files, "b.txt"), []byte("b"), false)
	require.NoError(t, err)
	_, err = w.Write(ctx, nil, filepath.Join(files, "a.txt"), []byte("a"), false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(files, tempPrefix+"x"), []byte("tmp"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(files, "sub"), 0755))

	names, err := w.List(ctx, files)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)

	missing, err := w.List(ctx, filepath.Join(files, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestCanceledContext(t *testing.T) {
	w, files := newTestWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Write(ctx, nil, filepath.Join(files, "a.txt"), []byte("x"), false)
	assert.ErrorIs(t, err, context.Canceled)
}
