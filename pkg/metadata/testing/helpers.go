package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseTime anchors CreatedAt so ordering assertions are deterministic.
var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewFileRecord builds a public file record in Home with the given hash.
// seq offsets CreatedAt so records sort in creation order.
func NewFileRecord(id, name, hash string, seq int) *metadata.FileRecord {
	ts := baseTime.Add(time.Duration(seq) * time.Second)
	return &metadata.FileRecord{
		ID:          id,
		FileName:    name,
		FileURL:     metadata.URLFor(name, false),
		Folder:      metadata.HomeFolder,
		ContentHash: hash,
		Size:        int64(len(name)),
		CreatedAt:   ts,
		ModifiedAt:  ts,
	}
}

// NewFolderRecord builds a folder record under parent.
func NewFolderRecord(id, parent string) *metadata.FileRecord {
	return &metadata.FileRecord{
		ID:         id,
		FileName:   id,
		IsFolder:   true,
		Folder:     parent,
		CreatedAt:  baseTime,
		ModifiedAt: baseTime,
	}
}

// mustPut stores rec outside any transaction.
func mustPut(t *testing.T, store metadata.Store, rec *metadata.FileRecord) {
	t.Helper()
	require.NoError(t, store.PutFile(context.Background(), nil, rec))
}

// ids extracts record IDs preserving order.
func ids(recs []*metadata.FileRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

// AssertErrorCode asserts that err is a StoreError carrying code.
func AssertErrorCode(t *testing.T, code metadata.ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	got, ok := metadata.ErrorCodeOf(err)
	require.True(t, ok, "expected StoreError, got %T: %v", err, err)
	assert.Equal(t, code, got, "unexpected error code: %v", err)
}
