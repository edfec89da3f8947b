package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DITTOFILES_STORAGE_SITE_ROOT", filepath.Join(dir, "site"))
	t.Setenv("DITTOFILES_LOGGING_LEVEL", "ERROR")
	configPath := filepath.Join(dir, "config.yaml")

	require.NoError(t, run([]string{"--config", configPath, "init"}))
	assert.FileExists(t, configPath)
	assert.Error(t, run([]string{"--config", configPath, "init"}))

	src := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(src, []byte("Hello"), 0644))

	require.NoError(t, run([]string{"--config", configPath, "--user", "alice", "put", src}))
	require.NoError(t, run([]string{"--config", configPath, "--user", "alice", "put", "--name", "copy.txt", src}))
	assert.FileExists(t, filepath.Join(dir, "site", "public", "files", "hello.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "site", "public", "files", "copy.txt"))

	require.NoError(t, run([]string{"--config", configPath, "--user", "alice", "ls"}))
	require.NoError(t, run([]string{"--config", configPath, "gc", "--dry-run"}))
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DITTOFILES_STORAGE_SITE_ROOT", filepath.Join(dir, "site"))
	t.Setenv("DITTOFILES_LOGGING_LEVEL", "ERROR")
	configPath := filepath.Join(dir, "missing.yaml")

	assert.Error(t, run(nil))
	assert.Error(t, run([]string{"frobnicate"}))

	err := run([]string{"--config", configPath, "cat", "no-such-id"})
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))

	err = run([]string{"--config", configPath, "mv", "only-one-arg"})
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 4, exitCode(metadata.NewError(metadata.ErrPermissionDenied, "a.txt", "denied")))
	assert.Equal(t, 2, exitCode(metadata.NewError(metadata.ErrFileTooLarge, "a.txt", "too big")))
}
