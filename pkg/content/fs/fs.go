// Package fs implements the transactional filesystem writer used by the file
// engine.
//
// Writes go to a temporary file in the destination directory, are synced,
// and then land on the final name with a single link or rename, so a reader
// never sees a partially written file under a managed name.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/metadata"
)

// tempPrefix marks in-flight files; listings and GC skip them.
const tempPrefix = ".dittofiles-tmp-"

// FSWriter implements content.Writer on the local filesystem.
//
// Thread Safety:
// Safe for concurrent use. Atomicity of each individual write or move comes
// from the operating system's rename semantics.
type FSWriter struct {
	root string
}

// NewFSWriter creates a writer confined to root.
//
// The directories in dirs (normally the public and private partitions) are
// created if missing.
//
// Context Cancellation:
// This operation checks the context before creating the directory structure.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - root: Absolute site root every path must stay inside
//   - dirs: Directories to create under root
//
// Returns:
//   - *FSWriter: Initialized writer
//   - error: Returns error if directory creation fails or context is cancelled
func NewFSWriter(ctx context.Context, root string, dirs ...string) (*FSWriter, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Create the partition directories if they don't exist
	// ========================================================================

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, content.TranslateOSError("create directory", dir, err)
		}
	}

	logger.Debug("filesystem writer rooted at %s", abs)
	return &FSWriter{root: filepath.Clean(abs)}, nil
}

// Root returns the directory every managed path lies under.
func (w *FSWriter) Root() string {
	return w.root
}

// guard verifies path is lexically inside the root and that no symlink along
// the way redirects it elsewhere.
//
// filepath-securejoin resolves the path component by component as if root
// were the filesystem root. If the result differs from the lexical path, a
// symlink inside the tree points somewhere else and the path is refused.
func (w *FSWriter) guard(path string) error {
	clean := filepath.Clean(path)

	rel, err := filepath.Rel(w.root, clean)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return metadata.NewError(metadata.ErrPathTraversal, path, "path outside %s", w.root)
	}

	resolved, err := securejoin.SecureJoin(w.root, rel)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if resolved != clean {
		return metadata.NewError(metadata.ErrPathTraversal, path, "path resolves through a symlink to %s", resolved)
	}
	return nil
}

var _ content.Writer = (*FSWriter)(nil)
