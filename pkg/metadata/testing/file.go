package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFileTests executes record CRUD tests
func (suite *StoreTestSuite) RunFileTests(t *testing.T) {
	t.Run("PutAndGet", suite.testPutAndGet)
	t.Run("GetReturnsCopy", suite.testGetReturnsCopy)
	t.Run("PutReplaces", suite.testPutReplaces)
	t.Run("GetNotFound", suite.testGetNotFound)
	t.Run("DeleteRemoves", suite.testDeleteRemoves)
	t.Run("DeleteNotFound", suite.testDeleteNotFound)
	t.Run("PutRequiresID", suite.testPutRequiresID)
	t.Run("PutInconsistentPanics", suite.testPutInconsistentPanics)
	t.Run("CanceledContext", suite.testCanceledContext)
}

func (suite *StoreTestSuite) testPutAndGet(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	rec := NewFileRecord("f1", "a.txt", "h1", 0)
	rec.AttachedTo = &metadata.Attachment{Doctype: "Note", Name: "N-1", Field: "attachment"}
	mustPut(t, store, rec)

	got, err := store.GetFile(ctx, nil, "f1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.FileName)
	assert.Equal(t, "/files/a.txt", got.FileURL)
	assert.Equal(t, "h1", got.ContentHash)
	require.NotNil(t, got.AttachedTo)
	assert.Equal(t, "N-1", got.AttachedTo.Name)
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
}

func (suite *StoreTestSuite) testGetReturnsCopy(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFileRecord("f1", "a.txt", "h1", 0))

	got, err := store.GetFile(ctx, nil, "f1")
	require.NoError(t, err)
	got.FileName = "mutated.txt"

	again, err := store.GetFile(ctx, nil, "f1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", again.FileName)
}

func (suite *StoreTestSuite) testPutReplaces(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFileRecord("f1", "a.txt", "h1", 0))

	rec := NewFileRecord("f1", "b.txt", "h2", 0)
	mustPut(t, store, rec)

	got, err := store.GetFile(ctx, nil, "f1")
	require.NoError(t, err)
	assert.Equal(t, "b.txt", got.FileName)

	// Stale index entries are gone
	byOld, err := store.FindByHash(ctx, nil, "h1", false)
	require.NoError(t, err)
	assert.Empty(t, byOld)
	byOldURL, err := store.FindByURL(ctx, nil, "/files/a.txt")
	require.NoError(t, err)
	assert.Empty(t, byOldURL)

	byNew, err := store.FindByHash(ctx, nil, "h2", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, ids(byNew))
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.GetFile(context.Background(), nil, "missing")
	AssertErrorCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testDeleteRemoves(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFileRecord("f1", "a.txt", "h1", 0))
	require.NoError(t, store.DeleteFile(ctx, nil, "f1"))

	_, err := store.GetFile(ctx, nil, "f1")
	AssertErrorCode(t, metadata.ErrNotFound, err)

	byHash, err := store.FindByHash(ctx, nil, "h1", false)
	require.NoError(t, err)
	assert.Empty(t, byHash)

	children, err := store.ListChildren(ctx, nil, metadata.HomeFolder)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func (suite *StoreTestSuite) testDeleteNotFound(t *testing.T) {
	store := suite.NewStore()

	err := store.DeleteFile(context.Background(), nil, "missing")
	AssertErrorCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testPutRequiresID(t *testing.T) {
	store := suite.NewStore()

	err := store.PutFile(context.Background(), nil, NewFileRecord("", "a.txt", "h1", 0))
	AssertErrorCode(t, metadata.ErrInvalidArgument, err)
}

func (suite *StoreTestSuite) testPutInconsistentPanics(t *testing.T) {
	store := suite.NewStore()

	rec := NewFileRecord("f1", "a.txt", "h1", 0)
	rec.IsPrivate = true // url is still public

	assert.Panics(t, func() {
		_ = store.PutFile(context.Background(), nil, rec)
	})
}

func (suite *StoreTestSuite) testCanceledContext(t *testing.T) {
	store := suite.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetFile(ctx, nil, "f1")
	assert.ErrorIs(t, err, context.Canceled)

	err = store.PutFile(ctx, nil, NewFileRecord("f1", "a.txt", "h1", 0))
	assert.ErrorIs(t, err, context.Canceled)
}
