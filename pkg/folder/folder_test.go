package folder

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metadata/memory"
	metadatatesting "github.com/marmos91/dittofiles/pkg/metadata/testing"
	"github.com/marmos91/dittofiles/pkg/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHierarchy(t *testing.T) (*Hierarchy, metadata.Store) {
	t.Helper()
	store := memory.NewMemoryMetadataStore()
	h := New(store)
	require.NoError(t, h.EnsureRoots(context.Background(), nil))
	return h, store
}

func TestJoinNameAndIsWithin(t *testing.T) {
	assert.Equal(t, "Home/Invoices", JoinName("Home", "Invoices"))
	assert.Equal(t, "Home", JoinName("", "Home"))

	assert.True(t, IsWithin("Home/A", "Home/A"))
	assert.True(t, IsWithin("Home/A/B", "Home/A"))
	assert.False(t, IsWithin("Home/AB", "Home/A"))
}

func TestDefaultFolder(t *testing.T) {
	assert.Equal(t, "Home", DefaultFolder(false))
	assert.Equal(t, "Home/Attachments", DefaultFolder(true))
}

func TestEnsureRoots_Idempotent(t *testing.T) {
	h, store := newHierarchy(t)
	ctx := context.Background()

	require.NoError(t, h.EnsureRoots(ctx, nil))

	home, err := store.GetFile(ctx, nil, "Home")
	require.NoError(t, err)
	assert.True(t, home.IsHomeFolder)

	attachments, err := store.GetFile(ctx, nil, "Home/Attachments")
	require.NoError(t, err)
	assert.True(t, attachments.IsAttachmentsFolder)
	assert.Equal(t, "Home", attachments.Folder)
}

func TestCreate(t *testing.T) {
	h, _ := newHierarchy(t)
	ctx := context.Background()

	rec, err := h.Create(ctx, nil, "Invoices", "", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Home/Invoices", rec.ID)
	assert.Equal(t, "Home", rec.Folder)

	nested, err := h.Create(ctx, nil, "2024", "Home/Invoices", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Home/Invoices/2024", nested.ID)

	_, err = h.Create(ctx, nil, "Invoices", "Home", "alice")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrAlreadyExists))

	_, err = h.Create(ctx, nil, "x", "Home/Missing", "alice")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrNotFound))

	_, err = h.Create(ctx, nil, "a/b", "Home", "alice")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrInvalidFileName))
}

func TestDelete(t *testing.T) {
	h, store := newHierarchy(t)
	ctx := context.Background()

	_, err := h.Create(ctx, nil, "Docs", "Home", "")
	require.NoError(t, err)

	file := metadatatesting.NewFileRecord("f1", "a.txt", "h1", 0)
	file.Folder = "Home/Docs"
	require.NoError(t, store.PutFile(ctx, nil, file))

	err = h.Delete(ctx, nil, "Home/Docs")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrFolderNotEmpty))

	require.NoError(t, store.DeleteFile(ctx, nil, "f1"))
	require.NoError(t, h.Delete(ctx, nil, "Home/Docs"))

	err = h.Delete(ctx, nil, "Home")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrProtectedFolder))
	err = h.Delete(ctx, nil, "Home/Attachments")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrProtectedFolder))
}

func TestRename_Cascades(t *testing.T) {
	h, store := newHierarchy(t)
	ctx := context.Background()

	_, err := h.Create(ctx, nil, "Invoices", "Home", "")
	require.NoError(t, err)
	_, err = h.Create(ctx, nil, "2024", "Home/Invoices", "")
	require.NoError(t, err)

	file := metadatatesting.NewFileRecord("f1", "a.txt", "h1", 0)
	file.Folder = "Home/Invoices/2024"
	require.NoError(t, store.PutFile(ctx, nil, file))

	renamed, err := h.Rename(ctx, nil, "Home/Invoices", "Bills")
	require.NoError(t, err)
	assert.Equal(t, "Home/Bills", renamed.ID)

	_, err = store.GetFile(ctx, nil, "Home/Invoices")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrNotFound))
	_, err = store.GetFile(ctx, nil, "Home/Invoices/2024")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrNotFound))

	sub, err := store.GetFile(ctx, nil, "Home/Bills/2024")
	require.NoError(t, err)
	assert.Equal(t, "Home/Bills", sub.Folder)

	moved, err := store.GetFile(ctx, nil, "f1")
	require.NoError(t, err)
	assert.Equal(t, "Home/Bills/2024", moved.Folder)
}

func TestRename_Protected(t *testing.T) {
	h, _ := newHierarchy(t)

	_, err := h.Rename(context.Background(), nil, "Home/Attachments", "Other")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrProtectedFolder))
}

func TestMove(t *testing.T) {
	h, store := newHierarchy(t)
	ctx := context.Background()

	_, err := h.Create(ctx, nil, "A", "Home", "")
	require.NoError(t, err)
	_, err = h.Create(ctx, nil, "B", "Home/A", "")
	require.NoError(t, err)
	_, err = h.Create(ctx, nil, "C", "Home", "")
	require.NoError(t, err)

	_, err = h.Move(ctx, nil, "Home/A", "Home/A/B")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrInvalidArgument))
	_, err = h.Move(ctx, nil, "Home/A", "Home/A")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrInvalidArgument))

	moved, err := h.Move(ctx, nil, "Home/A", "Home/C")
	require.NoError(t, err)
	assert.Equal(t, "Home/C/A", moved.ID)

	_, err = store.GetFile(ctx, nil, "Home/C/A/B")
	require.NoError(t, err)

	children, err := h.Children(ctx, nil, "Home")
	require.NoError(t, err)
	var ids []string
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"Home/Attachments", "Home/C"}, ids)
}

func TestRename_AbortRestoresTree(t *testing.T) {
	h, store := newHierarchy(t)
	ctx := context.Background()

	_, err := h.Create(ctx, nil, "A", "Home", "")
	require.NoError(t, err)
	_, err = h.Create(ctx, nil, "B", "Home/A", "")
	require.NoError(t, err)

	tx := txn.Begin()
	_, err = h.Rename(ctx, tx, "Home/A", "Z")
	require.NoError(t, err)
	require.NoError(t, tx.Abort(ctx))

	_, err = store.GetFile(ctx, nil, "Home/A/B")
	require.NoError(t, err)
	_, err = store.GetFile(ctx, nil, "Home/Z")
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrNotFound))
}
