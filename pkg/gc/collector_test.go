package gc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/marmos91/dittofiles/pkg/content/fs"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/metadata/memory"
	metadatatesting "github.com/marmos91/dittofiles/pkg/metadata/testing"
	"github.com/marmos91/dittofiles/pkg/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *memory.MemoryMetadataStore
	resolver *location.Resolver
	writer   *fs.FSWriter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	resolver, err := location.NewResolver(root)
	require.NoError(t, err)
	writer, err := fs.NewFSWriter(context.Background(), root, resolver.PartitionDir(false), resolver.PartitionDir(true))
	require.NoError(t, err)

	return &fixture{store: memory.NewMemoryMetadataStore(), resolver: resolver, writer: writer}
}

// file writes name into a partition, aged by age.
func (f *fixture) file(t *testing.T, name string, isPrivate bool, age time.Duration) string {
	t.Helper()
	p, err := f.resolver.Resolve(name, isPrivate)
	require.NoError(t, err)
	_, err = f.writer.Write(context.Background(), nil, p, []byte(name), false)
	require.NoError(t, err)

	when := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(p, when, when))
	return location.URL(name, isPrivate)
}

func (f *fixture) present(t *testing.T, fileURL string) bool {
	t.Helper()
	p, _, err := f.resolver.ResolveURL(fileURL)
	require.NoError(t, err)
	ok, err := f.writer.Exists(context.Background(), p)
	require.NoError(t, err)
	return ok
}

// seed builds a root with one referenced file plus thumbnail, one old and
// one fresh orphan, and one record whose bytes are gone.
func (f *fixture) seed(t *testing.T) (kept, thumb, oldOrphan, newOrphan string) {
	t.Helper()
	ctx := context.Background()

	kept = f.file(t, "kept.png", false, 48*time.Hour)
	thumb = f.file(t, "kept_small.png", false, 48*time.Hour)
	oldOrphan = f.file(t, "stale.txt", true, 48*time.Hour)
	newOrphan = f.file(t, "inflight.txt", false, 0)

	rec := metadatatesting.NewFileRecord("r1", "kept.png", "h1", 1)
	rec.FileURL = kept
	rec.ThumbnailURL = thumb
	require.NoError(t, f.store.PutFile(ctx, nil, rec))

	ghost := metadatatesting.NewFileRecord("r2", "ghost.txt", "h2", 2)
	require.NoError(t, f.store.PutFile(ctx, nil, ghost))

	remote := metadatatesting.NewFileRecord("r3", "logo.png", "", 3)
	remote.FileURL = "https://example.com/logo.png"
	require.NoError(t, f.store.PutFile(ctx, nil, remote))

	return kept, thumb, oldOrphan, newOrphan
}

func TestCollect_DeletesOldOrphans(t *testing.T) {
	f := newFixture(t)
	kept, thumb, oldOrphan, newOrphan := f.seed(t)

	c := NewCollector(f.store, f.writer, f.resolver, Config{})
	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(4), stats.ExistingCount)
	assert.Equal(t, uint64(2), stats.OrphanedCount)
	assert.Equal(t, uint64(1), stats.DeletedCount)
	assert.Equal(t, uint64(1), stats.RecentCount)
	assert.Equal(t, []string{oldOrphan}, stats.Orphans)
	assert.Equal(t, []string{"r2"}, stats.Missing)

	assert.True(t, f.present(t, kept))
	assert.True(t, f.present(t, thumb))
	assert.True(t, f.present(t, newOrphan))
	assert.False(t, f.present(t, oldOrphan))
}

func TestCollect_DryRun(t *testing.T) {
	f := newFixture(t)
	_, _, oldOrphan, _ := f.seed(t)

	c := NewCollector(f.store, f.writer, f.resolver, Config{DryRun: true})
	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{oldOrphan}, stats.Orphans)
	assert.Zero(t, stats.DeletedCount)
	assert.True(t, f.present(t, oldOrphan))
	assert.Contains(t, stats.Summary(), "orphaned=2")
}

func TestCollect_PacedDeletes(t *testing.T) {
	f := newFixture(t)
	_, _, oldOrphan, _ := f.seed(t)
	extra := f.file(t, "stale2.txt", false, 48*time.Hour)

	c := NewCollector(f.store, f.writer, f.resolver, Config{DeletesPerSecond: 10})
	start := time.Now()
	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(2), stats.DeletedCount)
	assert.False(t, f.present(t, oldOrphan))
	assert.False(t, f.present(t, extra))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestCollect_KeepsFileMovedByOpenTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	oldURL := f.file(t, "old.txt", false, 2*time.Hour)
	rec := metadatatesting.NewFileRecord("r1", "old.txt", "h1", 1)
	rec.FileURL = oldURL
	require.NoError(t, f.store.PutFile(ctx, nil, rec))

	from, _, err := f.resolver.ResolveURL(oldURL)
	require.NoError(t, err)
	to, err := f.resolver.Resolve("old.txt", true)
	require.NoError(t, err)

	// The record still points at the public URL until tx commits.
	tx := txn.Begin()
	require.NoError(t, f.writer.Move(ctx, tx, from, to))

	stats, err := NewCollector(f.store, f.writer, f.resolver, Config{}).RunNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.DeletedCount)
	assert.Equal(t, uint64(1), stats.RecentCount)
	assert.True(t, f.present(t, location.URL("old.txt", true)))

	require.NoError(t, tx.Abort(ctx))
	assert.True(t, f.present(t, oldURL))
}

func TestCollect_NothingToDo(t *testing.T) {
	f := newFixture(t)

	stats, err := NewCollector(f.store, f.writer, f.resolver, Config{}).RunNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.OrphanedCount)
	assert.Empty(t, stats.Missing)
}

func TestCollect_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCollector(f.store, f.writer, f.resolver, Config{}).RunNow(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollector_StartStop(t *testing.T) {
	f := newFixture(t)
	_, _, oldOrphan, _ := f.seed(t)

	c := NewCollector(f.store, f.writer, f.resolver, Config{Enabled: true, Interval: 10 * time.Millisecond})
	c.Start()
	c.Start()

	assert.Eventually(t, func() bool { return !f.present(t, oldOrphan) }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Stop(ctx))
}

func TestCollector_StopWithoutStart(t *testing.T) {
	f := newFixture(t)

	c := NewCollector(f.store, f.writer, f.resolver, Config{Enabled: true})
	require.NoError(t, c.Stop(context.Background()))
}
