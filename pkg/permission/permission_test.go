package permission

import (
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
)

func TestOwnerGate(t *testing.T) {
	gate := OwnerGate{}
	alice := Actor{User: "alice"}
	bob := Actor{User: "bob"}

	private := &metadata.FileRecord{ID: "f1", IsPrivate: true, Owner: "alice", FileURL: "/private/files/a.txt"}
	public := &metadata.FileRecord{ID: "f2", Owner: "alice", FileURL: "/files/a.txt"}
	folder := &metadata.FileRecord{ID: "Home/X", IsFolder: true, Owner: "alice"}

	assert.True(t, gate.HasPermission(private, Read, alice))
	assert.False(t, gate.HasPermission(private, Read, bob))
	assert.True(t, gate.HasPermission(public, Read, bob))
	assert.False(t, gate.HasPermission(public, Write, bob))
	assert.True(t, gate.HasPermission(public, Delete, alice))
	assert.True(t, gate.HasPermission(folder, Read, bob))
	assert.True(t, gate.HasPermission(private, Create, bob))
	assert.True(t, gate.HasPermission(private, Delete, System))

	orphan := &metadata.FileRecord{ID: "f3", IsPrivate: true}
	assert.False(t, gate.HasPermission(orphan, Read, Actor{}))
}

func TestAllowAll(t *testing.T) {
	assert.True(t, AllowAll.HasPermission(&metadata.FileRecord{}, Delete, Actor{}))
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "read", Read.String())
	assert.Equal(t, "delete", Delete.String())
	assert.Equal(t, "unknown", Action(42).String())
}
