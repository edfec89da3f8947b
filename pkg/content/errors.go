package content

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/marmos91/dittofiles/pkg/metadata"
)

// ============================================================================
// Filesystem Error Translation
// ============================================================================

// TranslateOSError maps an operating system error to the engine's error
// taxonomy so callers can branch on metadata.ErrorCode instead of errno.
//
// Mapping:
//   - ENOSPC, EDQUOT-like exhaustion      → ErrDiskFull
//   - EACCES, EPERM, EROFS                → ErrPermissionDenied
//   - EEXIST                              → ErrAlreadyExists
//   - ENOENT                              → ErrMissingOnDisk
//
// Anything else is returned wrapped with the operation and path, unchanged in
// kind: it is an infrastructure failure, not a domain error.
//
// Usage Pattern:
//
//	if err := os.Rename(from, to); err != nil {
//	    return content.TranslateOSError("move", to, err)
//	}
func TranslateOSError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, syscall.ENOSPC):
		return metadata.NewError(metadata.ErrDiskFull, path, "%s: no space left on device", op)
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EROFS):
		return metadata.NewError(metadata.ErrPermissionDenied, path, "%s: permission denied", op)
	case errors.Is(err, fs.ErrExist):
		return metadata.NewError(metadata.ErrAlreadyExists, path, "%s: file already exists", op)
	case errors.Is(err, fs.ErrNotExist):
		return metadata.NewError(metadata.ErrMissingOnDisk, path, "%s: file does not exist", op)
	default:
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
}
