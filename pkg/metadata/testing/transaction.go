package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTransactionTests executes tests for store participation in document
// transactions.
func (suite *StoreTestSuite) RunTransactionTests(t *testing.T) {
	t.Run("CommitPersists", suite.testTxCommitPersists)
	t.Run("AbortDiscardsInsert", suite.testTxAbortDiscardsInsert)
	t.Run("AbortRestoresUpdate", suite.testTxAbortRestoresUpdate)
	t.Run("AbortRestoresDelete", suite.testTxAbortRestoresDelete)
	t.Run("ReadsOwnWrites", suite.testTxReadsOwnWrites)
	t.Run("WriteAfterFinishFails", suite.testTxWriteAfterFinishFails)
}

func (suite *StoreTestSuite) testTxCommitPersists(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	tx := txn.Begin()
	require.NoError(t, store.PutFile(ctx, tx, NewFileRecord("f1", "a.txt", "h1", 0)))
	require.NoError(t, tx.Commit(ctx))

	got, err := store.GetFile(ctx, nil, "f1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.FileName)
}

func (suite *StoreTestSuite) testTxAbortDiscardsInsert(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	tx := txn.Begin()
	require.NoError(t, store.PutFile(ctx, tx, NewFileRecord("f1", "a.txt", "h1", 0)))
	require.NoError(t, tx.Abort(ctx))

	_, err := store.GetFile(ctx, nil, "f1")
	AssertErrorCode(t, metadata.ErrNotFound, err)

	byHash, err := store.FindByHash(ctx, nil, "h1", false)
	require.NoError(t, err)
	assert.Empty(t, byHash)
}

func (suite *StoreTestSuite) testTxAbortRestoresUpdate(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFileRecord("f1", "a.txt", "h1", 0))

	tx := txn.Begin()
	require.NoError(t, store.PutFile(ctx, tx, NewFileRecord("f1", "b.txt", "h2", 0)))
	require.NoError(t, tx.Abort(ctx))

	got, err := store.GetFile(ctx, nil, "f1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.FileName)

	byHash, err := store.FindByHash(ctx, nil, "h1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, ids(byHash))
}

func (suite *StoreTestSuite) testTxAbortRestoresDelete(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFileRecord("f1", "a.txt", "h1", 0))

	tx := txn.Begin()
	require.NoError(t, store.DeleteFile(ctx, tx, "f1"))
	require.NoError(t, tx.Abort(ctx))

	_, err := store.GetFile(ctx, nil, "f1")
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testTxReadsOwnWrites(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	tx := txn.Begin()
	defer func() { _ = tx.Abort(ctx) }()

	require.NoError(t, store.PutFile(ctx, tx, NewFileRecord("f1", "a.txt", "h1", 0)))

	got, err := store.GetFile(ctx, tx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.FileName)

	byHash, err := store.FindByHash(ctx, tx, "h1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, ids(byHash))
}

func (suite *StoreTestSuite) testTxWriteAfterFinishFails(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	tx := txn.Begin()
	require.NoError(t, store.PutFile(ctx, tx, NewFileRecord("f1", "a.txt", "h1", 0)))
	require.NoError(t, tx.Commit(ctx))

	err := store.PutFile(ctx, tx, NewFileRecord("f2", "b.txt", "h2", 1))
	require.Error(t, err)

	_, err = store.GetFile(ctx, nil, "f2")
	AssertErrorCode(t, metadata.ErrNotFound, err)
}
