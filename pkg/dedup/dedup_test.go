package dedup

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/content/fs"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metadata/memory"
	metadatatesting "github.com/marmos91/dittofiles/pkg/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	index    *Index
	store    *memory.MemoryMetadataStore
	resolver *location.Resolver
	writer   *fs.FSWriter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()

	resolver, err := location.NewResolver(root)
	require.NoError(t, err)
	writer, err := fs.NewFSWriter(ctx, root, resolver.PartitionDir(false), resolver.PartitionDir(true))
	require.NoError(t, err)
	store := memory.NewMemoryMetadataStore()

	return &fixture{index: New(store, resolver, writer), store: store, resolver: resolver, writer: writer}
}

// put stores rec and, when onDisk, writes its bytes.
func (f *fixture) put(t *testing.T, rec *metadata.FileRecord, onDisk bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.PutFile(ctx, nil, rec))
	if onDisk {
		path, _, err := f.resolver.ResolveURL(rec.FileURL)
		require.NoError(t, err)
		_, err = f.writer.Write(ctx, nil, path, []byte(rec.FileName), true)
		require.NoError(t, err)
	}
}

func TestFind_Hit(t *testing.T) {
	f := newFixture(t)
	f.put(t, metadatatesting.NewFileRecord("f1", "a.txt", "h1", 0), true)

	rec, err := f.index.Find(context.Background(), nil, "h1", false, "")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "f1", rec.ID)
}

func TestFind_ScopedByPrivacy(t *testing.T) {
	f := newFixture(t)
	f.put(t, metadatatesting.NewFileRecord("f1", "a.txt", "h1", 0), true)

	rec, err := f.index.Find(context.Background(), nil, "h1", true, "")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFind_ExcludesSelf(t *testing.T) {
	f := newFixture(t)
	f.put(t, metadatatesting.NewFileRecord("f1", "a.txt", "h1", 0), true)

	rec, err := f.index.Find(context.Background(), nil, "h1", false, "f1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFind_SkipsMissingOnDisk(t *testing.T) {
	f := newFixture(t)
	f.put(t, metadatatesting.NewFileRecord("gone", "gone.txt", "h1", 0), false)
	f.put(t, metadatatesting.NewFileRecord("kept", "kept.txt", "h1", 1), true)

	rec, err := f.index.Find(context.Background(), nil, "h1", false, "")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "kept", rec.ID)
}

func TestFind_EmptyHash(t *testing.T) {
	f := newFixture(t)

	rec, err := f.index.Find(context.Background(), nil, "", false, "")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAliasesAndReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := metadatatesting.NewFileRecord("f1", "a.txt", "h1", 0)
	b := metadatatesting.NewFileRecord("f2", "a.txt", "h1", 1)
	f.put(t, a, true)
	f.put(t, b, false)

	aliases, err := f.index.Aliases(ctx, nil, a)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "f2", aliases[0].ID)

	used, err := f.index.Referenced(ctx, nil, a.FileURL, "f1")
	require.NoError(t, err)
	assert.True(t, used)

	require.NoError(t, f.store.DeleteFile(ctx, nil, "f2"))
	used, err = f.index.Referenced(ctx, nil, a.FileURL, "f1")
	require.NoError(t, err)
	assert.False(t, used)
}

func TestReferenced_Thumbnail(t *testing.T) {
	f := newFixture(t)

	img := metadatatesting.NewFileRecord("img", "a.png", "h1", 0)
	img.ThumbnailURL = "/files/a_small.png"
	f.put(t, img, false)

	used, err := f.index.Referenced(context.Background(), nil, "/files/a_small.png", "")
	require.NoError(t, err)
	assert.True(t, used)

}
