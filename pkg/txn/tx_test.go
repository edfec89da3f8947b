package txn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbort_FreshWriteIsDeleted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello"), 0644))

	tx := Begin()
	tx.RegisterRollback(FreshWrite{Path: path})
	require.NoError(t, tx.Abort(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, StateAborted, tx.State())
}

func TestAbort_ReplaceRestoresSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("new bytes"), 0644))

	tx := Begin()
	tx.RegisterRollback(Replace{Path: path, Original: []byte("old"), Mode: 0640})
	require.NoError(t, tx.Abort(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestAbort_MoveIsReversed(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "public", "files", "a.txt")
	to := filepath.Join(dir, "private", "files", "a.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(to), 0755))
	require.NoError(t, os.WriteFile(to, []byte("x"), 0644))

	tx := Begin()
	tx.RegisterRollback(Move{From: from, To: to})
	require.NoError(t, tx.Abort(context.Background()))

	_, err := os.Stat(from)
	assert.NoError(t, err)
	_, err = os.Stat(to)
	assert.True(t, os.IsNotExist(err))
}

func TestAbort_MoveRestoresModTime(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "a.txt")
	to := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(to, []byte("x"), 0644))
	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	tx := Begin()
	tx.RegisterRollback(Move{From: from, To: to, ModTime: old})
	require.NoError(t, tx.Abort(context.Background()))

	info, err := os.Stat(from)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "mtime %v", info.ModTime())
}

func TestAbort_ReverseOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(b, []byte("1"), 0644))

	// a was written fresh, then moved to b: undo must move b back to a
	// before deleting a.
	tx := Begin()
	tx.RegisterRollback(FreshWrite{Path: a})
	tx.RegisterRollback(Move{From: a, To: b})
	require.NoError(t, tx.Abort(context.Background()))
	assert.Equal(t, 2, tx.RolledBack())

	for _, p := range []string{a, b} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
}

func TestCommit_DiscardsOperations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello"), 0644))

	var after bool
	tx := Begin()
	tx.RegisterRollback(FreshWrite{Path: path})
	tx.AfterCommit(func(context.Context) { after = true })
	require.NoError(t, tx.Commit(context.Background()))

	assert.True(t, after)
	assert.Empty(t, tx.Pending())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestCommit_FailingHookAborts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello"), 0644))

	var aborted bool
	tx := Begin()
	tx.RegisterRollback(FreshWrite{Path: path})
	tx.OnCommit(func(context.Context) error { return errors.New("conflict") })
	tx.OnAbort(func(context.Context) { aborted = true })

	err := tx.Commit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict")
	assert.True(t, aborted)
	assert.Equal(t, StateAborted, tx.State())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFinishedTransaction(t *testing.T) {
	tx := Begin()
	require.NoError(t, tx.Commit(context.Background()))

	assert.ErrorIs(t, tx.Commit(context.Background()), ErrDone)
	assert.ErrorIs(t, tx.Abort(context.Background()), ErrDone)
	assert.Panics(t, func() { tx.RegisterRollback(FreshWrite{Path: "x"}) })
}

func TestAbortRunsExactlyOnce(t *testing.T) {
	calls := 0
	tx := Begin()
	tx.OnAbort(func(context.Context) { calls++ })

	require.NoError(t, tx.Abort(context.Background()))
	assert.ErrorIs(t, tx.Abort(context.Background()), ErrDone)
	assert.Equal(t, 1, calls)
}

func TestRun(t *testing.T) {
	committed := false
	err := Run(context.Background(), func(tx *Tx) error {
		tx.OnCommit(func(context.Context) error {
			committed = true
			return nil
		})
		return nil
	})
	require.NoError(t, err)
	assert.True(t, committed)

	boom := errors.New("boom")
	aborted := false
	err = Run(context.Background(), func(tx *Tx) error {
		tx.OnAbort(func(context.Context) { aborted = true })
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, aborted)
}
