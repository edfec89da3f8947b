package metadata

import (
	"errors"
	"fmt"
)

// StoreError represents a domain error raised by the file engine.
//
// These are business logic errors (invalid name, path escape, folder not
// empty, etc.) as opposed to infrastructure errors (badger failure, broken
// pipe). Surfaces built on top of the engine (CLI, HTTP) translate the Code
// into their own status codes.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the file name, URL or filesystem path related to the error (if any)
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// Is reports whether target is a StoreError with the same Code.
//
// This lets callers match on a category without caring about the message:
//
//	if errors.Is(err, &metadata.StoreError{Code: metadata.ErrPathTraversal}) { ... }
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ErrorCode represents the category of a StoreError.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrInvalidFileName indicates a file name is empty, reserved or contains a separator
	ErrInvalidFileName

	// ErrPathTraversal indicates a path or URL would escape the managed root
	ErrPathTraversal

	// ErrFileTooLarge indicates content exceeds the configured maximum size
	ErrFileTooLarge

	// ErrAttachmentLimitReached indicates the owner document already holds
	// the maximum number of attachments allowed for its doctype
	ErrAttachmentLimitReached

	// ErrPrivacyConflict indicates the target partition already holds a
	// different file under the same name
	ErrPrivacyConflict

	// ErrFolderNotEmpty indicates a folder still has children
	ErrFolderNotEmpty

	// ErrNotAZipFile indicates unzip was requested on a non-.zip record
	ErrNotAZipFile

	// ErrZipCorrupt indicates an archive could not be parsed
	ErrZipCorrupt

	// ErrMissingOnDisk indicates a record's bytes are absent from disk
	ErrMissingOnDisk

	// ErrDiskFull indicates the filesystem has no space left
	ErrDiskFull

	// ErrPermissionDenied indicates either the OS or the permission gate refused access
	ErrPermissionDenied

	// ErrAlreadyExists indicates a path is taken and overwrite was not requested
	ErrAlreadyExists

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: folder as parent of itself, remote file content request
	ErrInvalidArgument

	// ErrIOError indicates an unexpected I/O error
	ErrIOError

	// ErrProtectedFolder indicates an attempt to delete, rename or move
	// the Home or Attachments folder
	ErrProtectedFolder
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:               "NotFound",
	ErrInvalidFileName:        "InvalidFileName",
	ErrPathTraversal:          "PathTraversal",
	ErrFileTooLarge:           "FileTooLarge",
	ErrAttachmentLimitReached: "DuplicateAttachmentLimitReached",
	ErrPrivacyConflict:        "PrivacyConflict",
	ErrFolderNotEmpty:         "FolderNotEmpty",
	ErrNotAZipFile:            "NotAZipFile",
	ErrZipCorrupt:             "ZipCorrupt",
	ErrMissingOnDisk:          "MissingOnDisk",
	ErrDiskFull:               "DiskFull",
	ErrPermissionDenied:       "PermissionDenied",
	ErrAlreadyExists:          "AlreadyExists",
	ErrInvalidArgument:        "InvalidArgument",
	ErrIOError:                "IOError",
	ErrProtectedFolder:        "ProtectedFolder",
}

// String returns the error kind name.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// NewError builds a StoreError.
func NewError(code ErrorCode, path string, format string, args ...any) *StoreError {
	return &StoreError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Path:    path,
	}
}

// IsErrorCode reports whether any error in err's chain is a StoreError with
// the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		return false
	}
	return storeErr.Code == code
}

// ErrorCodeOf extracts the code of the first StoreError in err's chain.
func ErrorCodeOf(err error) (ErrorCode, bool) {
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		return 0, false
	}
	return storeErr.Code, true
}
