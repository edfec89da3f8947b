// Package location maps logical file identities to on-disk paths under the
// managed site root and enforces that no path escapes it.
//
// Layout:
//
//	<site_root>/public/files/<name>    file_url /files/<name>
//	<site_root>/private/files/<name>   file_url /private/files/<name>
//
// Every function here is lexical: nothing touches the filesystem, so a
// rejected name or URL is rejected before any filesystem call is made.
package location

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/marmos91/dittofiles/pkg/content/hash"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"golang.org/x/text/unicode/norm"
)

// MaxNameLength is the longest on-disk name accepted, in bytes.
const MaxNameLength = 255

// Resolver resolves file names and file URLs to absolute paths.
type Resolver struct {
	root string
}

// NewResolver creates a Resolver rooted at siteRoot.
//
// siteRoot is made absolute and cleaned; it is not required to exist.
func NewResolver(siteRoot string) (*Resolver, error) {
	if strings.TrimSpace(siteRoot) == "" {
		return nil, fmt.Errorf("site root is required")
	}
	abs, err := filepath.Abs(siteRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve site root %q: %w", siteRoot, err)
	}
	return &Resolver{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute site root.
func (r *Resolver) Root() string {
	return r.root
}

// PartitionDir returns the directory holding files of the given scope.
func (r *Resolver) PartitionDir(isPrivate bool) string {
	if isPrivate {
		return filepath.Join(r.root, "private", "files")
	}
	return filepath.Join(r.root, "public", "files")
}

// Resolve returns the absolute path for fileName in the given scope.
//
// Returns ErrPathTraversal for names with ".." segments and ErrInvalidFileName
// for anything else ValidateFileName rejects.
func (r *Resolver) Resolve(fileName string, isPrivate bool) (string, error) {
	name, err := ValidateFileName(fileName)
	if err != nil {
		return "", err
	}
	return r.join(isPrivate, name)
}

// ResolveURL returns the absolute path and scope encoded in a local file_url.
//
// The URL is percent-decoded before validation, so an encoded "%2e%2e" is
// treated exactly like "..".
func (r *Resolver) ResolveURL(fileURL string) (path string, isPrivate bool, err error) {
	isPrivate, ok := metadata.PrivacyOfURL(fileURL)
	if !ok {
		return "", false, metadata.NewError(metadata.ErrInvalidArgument, fileURL,
			"file url must start with %s or %s", metadata.PublicURLPrefix, metadata.PrivateURLPrefix)
	}

	raw := metadata.DiskName(fileURL)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", false, metadata.NewError(metadata.ErrInvalidArgument, fileURL, "malformed file url")
	}

	name, err := ValidateFileName(decoded)
	if err != nil {
		var se *metadata.StoreError
		if errors.As(err, &se) {
			se.Path = fileURL
		}
		return "", false, err
	}

	path, err = r.join(isPrivate, name)
	return path, isPrivate, err
}

// join places a validated name inside its partition and re-checks containment.
func (r *Resolver) join(isPrivate bool, name string) (string, error) {
	dir := r.PartitionDir(isPrivate)
	path := filepath.Join(dir, name)
	if filepath.Dir(path) != dir {
		return "", metadata.NewError(metadata.ErrPathTraversal, name, "path escapes %s", dir)
	}
	return path, nil
}

// URL returns the file_url for a validated on-disk name.
func URL(name string, isPrivate bool) string {
	return metadata.URLFor(name, isPrivate)
}

// ValidateFileName normalizes name to NFC and checks it is a single safe
// path component. It returns the normalized name.
func ValidateFileName(name string) (string, error) {
	n := strings.TrimSpace(norm.NFC.String(name))

	if n == "" {
		return "", metadata.NewError(metadata.ErrInvalidFileName, name, "file name is empty")
	}
	for _, seg := range strings.FieldsFunc(n, isSeparator) {
		if seg == ".." {
			return "", metadata.NewError(metadata.ErrPathTraversal, name, "file name contains a parent reference")
		}
	}
	if n == "." || n == ".." {
		return "", metadata.NewError(metadata.ErrPathTraversal, name, "file name is a directory reference")
	}
	if strings.IndexFunc(n, isSeparator) >= 0 {
		return "", metadata.NewError(metadata.ErrInvalidFileName, name, "file name contains a path separator")
	}
	if strings.IndexFunc(n, unicode.IsControl) >= 0 {
		return "", metadata.NewError(metadata.ErrInvalidFileName, name, "file name contains control characters")
	}
	if len(n) > MaxNameLength {
		return "", metadata.NewError(metadata.ErrInvalidFileName, name, "file name longer than %d bytes", MaxNameLength)
	}
	return n, nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// SplitExt splits name into stem and extension. Dotfiles have no extension.
func SplitExt(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	stem = strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}

// Candidates returns the on-disk names tried in order when name is already
// taken by different bytes: the name itself, then the stem suffixed with the
// last 6 and 12 characters of digest, then with the full digest.
//
// The stem is shortened as needed so a suffixed candidate never exceeds
// MaxNameLength.
func Candidates(name, digest string) []string {
	if digest == "" {
		return []string{name}
	}
	stem, ext := SplitExt(name)
	suffixed := func(suffix string) string {
		return truncate(stem, MaxNameLength-len(suffix)-len(ext)) + suffix + ext
	}
	return []string{
		name,
		suffixed(hash.Suffix(digest, 6)),
		suffixed(hash.Suffix(digest, 12)),
		suffixed(digest),
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
