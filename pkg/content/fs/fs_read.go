package fs

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/marmos91/dittofiles/pkg/content"
)

// Read returns the full contents of path.
//
// Returns ErrMissingOnDisk when the file does not exist.
func (w *FSWriter) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.guard(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, content.TranslateOSError("read", path, err)
	}
	return data, nil
}

// Exists reports whether a regular file is present at path.
func (w *FSWriter) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := w.guard(path); err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, content.TranslateOSError("stat", path, err)
	}
	return info.Mode().IsRegular(), nil
}

// ModTime returns the last modification time of path.
func (w *FSWriter) ModTime(ctx context.Context, path string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if err := w.guard(path); err != nil {
		return time.Time{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, content.TranslateOSError("stat", path, err)
	}
	return info.ModTime(), nil
}

// List returns the sorted names of regular files directly inside dir,
// skipping in-flight temporary files. A missing dir lists as empty.
func (w *FSWriter) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.guard(dir); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, content.TranslateOSError("list", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
