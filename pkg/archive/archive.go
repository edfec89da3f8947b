// Package archive packs stored files into zip archives and unpacks uploaded
// archives into individual entries.
//
// The package works on names and bytes only. Choosing which records to pack,
// permission checks and turning entries back into records belong to the
// caller.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metadata"
)

const (
	// DownloadName is the file name offered for a zip download.
	DownloadName = "files.zip"

	// ContentType is the MIME type of a zip download.
	ContentType = "application/zip"
)

// Entry is one file inside an archive.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Download is a synthesized file ready to be served.
type Download struct {
	Name        string
	ContentType string
	Data        []byte
}

// IsZipName reports whether name carries a .zip extension.
func IsZipName(name string) bool {
	return strings.EqualFold(path.Ext(name), ".zip")
}

// Pack writes entries into a deflate-compressed zip archive.
//
// Entries keep their logical names; a name seen before gets " (n)" inserted
// before its extension so no entry shadows another.
func Pack(entries []Entry) (*Download, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]bool)
	for _, e := range entries {
		name := uniqueName(seen, e.Name)

		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if !e.Modified.IsZero() {
			hdr.Modified = e.Modified
		}

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, metadata.NewError(metadata.ErrIOError, name, "zip: %v", err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, metadata.NewError(metadata.ErrIOError, name, "zip: %v", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, metadata.NewError(metadata.ErrIOError, DownloadName, "zip: %v", err)
	}

	logger.Debug("packed %d entries into %d bytes", len(entries), buf.Len())
	return &Download{Name: DownloadName, ContentType: ContentType, Data: buf.Bytes()}, nil
}

func uniqueName(seen map[string]bool, name string) string {
	if !seen[name] {
		seen[name] = true
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if !seen[candidate] {
			seen[candidate] = true
			return candidate
		}
	}
}

// Unpack reads every regular file in a zip archive.
//
// Directory entries, macOS resource forks (__MACOSX) and hidden files are
// skipped; the remaining entries are flattened to their base name. An entry
// larger than maxEntrySize (when positive) fails the whole unpack with
// ErrFileTooLarge. A malformed archive yields ErrZipCorrupt.
func Unpack(data []byte, maxEntrySize int64) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, metadata.NewError(metadata.ErrZipCorrupt, "", "cannot read zip archive: %v", err)
	}

	var out []Entry
	for _, f := range zr.File {
		if skip(f) {
			continue
		}

		name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
		if maxEntrySize > 0 && f.UncompressedSize64 > uint64(maxEntrySize) {
			return nil, metadata.NewError(metadata.ErrFileTooLarge, name, "zip entry exceeds %d bytes", maxEntrySize)
		}

		body, err := readEntry(f, maxEntrySize)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Name: name, Data: body, Modified: f.Modified})
	}

	logger.Debug("unpacked %d of %d zip entries", len(out), len(zr.File))
	return out, nil
}

func skip(f *zip.File) bool {
	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return true
	}
	if strings.Contains(f.Name, "__MACOSX") {
		return true
	}
	base := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	return strings.HasPrefix(base, ".")
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, metadata.NewError(metadata.ErrZipCorrupt, f.Name, "cannot open zip entry: %v", err)
	}
	defer func() { _ = rc.Close() }()

	var r io.Reader = rc
	if limit > 0 {
		// The header size can lie; never read more than limit+1 bytes.
		r = io.LimitReader(rc, limit+1)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, metadata.NewError(metadata.ErrZipCorrupt, f.Name, "cannot read zip entry: %v", err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, metadata.NewError(metadata.ErrFileTooLarge, f.Name, "zip entry exceeds %d bytes", limit)
	}
	return body, nil
}
