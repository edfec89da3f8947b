package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunIndexTests executes secondary index query tests
func (suite *StoreTestSuite) RunIndexTests(t *testing.T) {
	t.Run("FindByHashScopedByPrivacy", suite.testFindByHashScopedByPrivacy)
	t.Run("FindByHashOrderedByCreation", suite.testFindByHashOrderedByCreation)
	t.Run("FindByHashIgnoresFolders", suite.testFindByHashIgnoresFolders)
	t.Run("FindByURLSharedBytes", suite.testFindByURLSharedBytes)
	t.Run("FindByThumbnailURL", suite.testFindByThumbnailURL)
	t.Run("ListChildren", suite.testListChildren)
	t.Run("CountAttachments", suite.testCountAttachments)
	t.Run("ListAll", suite.testListAll)
}

func (suite *StoreTestSuite) testFindByHashScopedByPrivacy(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFileRecord("pub", "a.txt", "h1", 0))

	priv := NewFileRecord("priv", "a.txt", "h1", 1)
	priv.IsPrivate = true
	priv.FileURL = metadata.URLFor("a.txt", true)
	mustPut(t, store, priv)

	public, err := store.FindByHash(ctx, nil, "h1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"pub"}, ids(public))

	private, err := store.FindByHash(ctx, nil, "h1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"priv"}, ids(private))
}

func (suite *StoreTestSuite) testFindByHashOrderedByCreation(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFileRecord("zz", "a.txt", "h1", 0))
	mustPut(t, store, NewFileRecord("aa", "a.txt", "h1", 2))
	mustPut(t, store, NewFileRecord("mm", "a.txt", "h1", 1))

	recs, err := store.FindByHash(ctx, nil, "h1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"zz", "mm", "aa"}, ids(recs))
}

func (suite *StoreTestSuite) testFindByHashIgnoresFolders(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFolderRecord("Home/Docs", metadata.HomeFolder))

	recs, err := store.FindByHash(ctx, nil, "", false)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func (suite *StoreTestSuite) testFindByURLSharedBytes(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFileRecord("f1", "a.txt", "h1", 0))
	mustPut(t, store, NewFileRecord("f2", "a.txt", "h1", 1))
	mustPut(t, store, NewFileRecord("f3", "b.txt", "h2", 2))

	recs, err := store.FindByURL(ctx, nil, "/files/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, ids(recs))

	none, err := store.FindByURL(ctx, nil, "/files/missing.txt")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func (suite *StoreTestSuite) testFindByThumbnailURL(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	rec := NewFileRecord("f1", "a.png", "h1", 0)
	rec.ThumbnailURL = "/files/a_small.png"
	mustPut(t, store, rec)

	recs, err := store.FindByThumbnailURL(ctx, nil, "/files/a_small.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, ids(recs))
}

func (suite *StoreTestSuite) testListChildren(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFolderRecord("Home/B", metadata.HomeFolder))
	mustPut(t, store, NewFolderRecord("Home/A", metadata.HomeFolder))
	mustPut(t, store, NewFolderRecord("Home/A/Deep", "Home/A"))
	mustPut(t, store, NewFileRecord("f1", "a.txt", "h1", 0))

	children, err := store.ListChildren(ctx, nil, metadata.HomeFolder)
	require.NoError(t, err)
	assert.Equal(t, []string{"Home/A", "Home/B", "f1"}, ids(children))

	nested, err := store.ListChildren(ctx, nil, "Home/A")
	require.NoError(t, err)
	assert.Equal(t, []string{"Home/A/Deep"}, ids(nested))

	empty, err := store.ListChildren(ctx, nil, "Home/B")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func (suite *StoreTestSuite) testCountAttachments(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	for i, id := range []string{"f1", "f2", "f3"} {
		rec := NewFileRecord(id, id+".txt", "h"+id, i)
		rec.AttachedTo = &metadata.Attachment{Doctype: "Note", Name: "N-1"}
		mustPut(t, store, rec)
	}
	other := NewFileRecord("f4", "f4.txt", "hf4", 4)
	other.AttachedTo = &metadata.Attachment{Doctype: "Note", Name: "N-2"}
	mustPut(t, store, other)

	n, err := store.CountAttachments(ctx, nil, "Note", "N-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = store.CountAttachments(ctx, nil, "Task", "N-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (suite *StoreTestSuite) testListAll(t *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	mustPut(t, store, NewFileRecord("f2", "b.txt", "h2", 1))
	mustPut(t, store, NewFileRecord("f1", "a.txt", "h1", 0))

	all, err := store.ListAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, ids(all))
}
