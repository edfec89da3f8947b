package document

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var owner = metadata.Attachment{Doctype: "Note", Name: "N-1", Field: "attachment"}

func TestMemoryStore_ReplaceURL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Set(owner, "/files/a.txt")

	changed, err := s.ReplaceURL(ctx, nil, owner, "/files/a.txt", "/private/files/a.txt")
	require.NoError(t, err)
	assert.True(t, changed)

	v, _ := s.Get(owner)
	assert.Equal(t, "/private/files/a.txt", v)
}

func TestMemoryStore_ReplaceURLOnlyMatching(t *testing.T) {
	s := NewMemoryStore()
	s.Set(owner, "/files/other.txt")

	changed, err := s.ReplaceURL(context.Background(), nil, owner, "/files/a.txt", "/private/files/a.txt")
	require.NoError(t, err)
	assert.False(t, changed)

	v, _ := s.Get(owner)
	assert.Equal(t, "/files/other.txt", v)
}

func TestMemoryStore_AbortRestores(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Set(owner, "/files/a.txt")

	tx := txn.Begin()
	_, err := s.ReplaceURL(ctx, tx, owner, "/files/a.txt", "/private/files/a.txt")
	require.NoError(t, err)
	require.NoError(t, tx.Abort(ctx))

	v, _ := s.Get(owner)
	assert.Equal(t, "/files/a.txt", v)
}

func TestMemoryStore_RequiresField(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.ReplaceURL(context.Background(), nil, metadata.Attachment{Doctype: "Note", Name: "N-1"}, "a", "b")
	require.Error(t, err)
}
