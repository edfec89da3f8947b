package metadata

import (
	"fmt"
	"strings"
	"time"
)

const (
	// PublicURLPrefix prefixes the file_url of every public file
	PublicURLPrefix = "/files/"

	// PrivateURLPrefix prefixes the file_url of every private file
	PrivateURLPrefix = "/private/files/"

	// HomeFolder is the identity of the root folder
	HomeFolder = "Home"

	// AttachmentsFolder is the identity of the reserved folder holding files
	// attached to owner documents
	AttachmentsFolder = "Home/Attachments"
)

// Attachment links a file to the owner document field that references it.
//
// The engine only uses it for default folder placement, the attachment
// limit and URL propagation on privacy changes. Field may be empty when the
// file is attached to the document as a whole.
type Attachment struct {
	Doctype string `json:"doctype"`
	Name    string `json:"name"`
	Field   string `json:"field,omitempty"`
}

// String returns "doctype/name[.field]".
func (a Attachment) String() string {
	if a.Field == "" {
		return a.Doctype + "/" + a.Name
	}
	return a.Doctype + "/" + a.Name + "." + a.Field
}

// FileRecord is the metadata record of a stored file or folder.
//
// Folder records use their folder path as ID (e.g. "Home/Invoices") and never
// carry content. File records get a random UUID.
type FileRecord struct {
	// ID uniquely identifies the record (folder path for folders)
	ID string `json:"id"`

	// FileName is the sanitized display name (never contains a separator)
	FileName string `json:"file_name"`

	// FileURL is "/files/<name>", "/private/files/<name>" or a remote http(s) URL.
	// Empty for folders.
	FileURL string `json:"file_url,omitempty"`

	// IsPrivate selects the private partition; must agree with FileURL's prefix
	IsPrivate bool `json:"is_private"`

	// IsFolder marks folder records
	IsFolder bool `json:"is_folder"`

	// IsHomeFolder marks the root folder
	IsHomeFolder bool `json:"is_home_folder,omitempty"`

	// IsAttachmentsFolder marks the reserved attachments folder
	IsAttachmentsFolder bool `json:"is_attachments_folder,omitempty"`

	// Folder is the parent folder identity (empty only for Home)
	Folder string `json:"folder,omitempty"`

	// ContentHash is the digest of the bytes; empty for folders and remote URLs
	ContentHash string `json:"content_hash,omitempty"`

	// AttachedTo optionally references the owning document
	AttachedTo *Attachment `json:"attached_to,omitempty"`

	// Owner is the actor that created the record
	Owner string `json:"owner,omitempty"`

	// Size is the content length in bytes
	Size int64 `json:"size"`

	// ContentType is the detected MIME type
	ContentType string `json:"content_type,omitempty"`

	// ThumbnailURL points at a generated thumbnail, if any
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// IsRemoteURL reports whether u is an http(s) URL stored by reference.
func IsRemoteURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsRemote reports whether the record references a remote URL.
func (r *FileRecord) IsRemote() bool {
	return IsRemoteURL(r.FileURL)
}

// IsLocal reports whether the record's bytes live under the managed root.
func (r *FileRecord) IsLocal() bool {
	return !r.IsFolder && r.FileURL != "" && !r.IsRemote()
}

// IsProtectedFolder reports whether the record is Home or Attachments.
func (r *FileRecord) IsProtectedFolder() bool {
	return r.IsHomeFolder || r.IsAttachmentsFolder
}

// URLFor returns the public form of an on-disk name in the given scope.
func URLFor(name string, isPrivate bool) string {
	if isPrivate {
		return PrivateURLPrefix + name
	}
	return PublicURLPrefix + name
}

// PrivacyOfURL returns whether a local file_url points at the private
// partition. ok is false when u carries neither prefix.
func PrivacyOfURL(u string) (isPrivate bool, ok bool) {
	switch {
	case strings.HasPrefix(u, PrivateURLPrefix):
		return true, true
	case strings.HasPrefix(u, PublicURLPrefix):
		return false, true
	default:
		return false, false
	}
}

// DiskName returns the on-disk name encoded in a local file_url.
func DiskName(u string) string {
	if strings.HasPrefix(u, PrivateURLPrefix) {
		return strings.TrimPrefix(u, PrivateURLPrefix)
	}
	return strings.TrimPrefix(u, PublicURLPrefix)
}

// AssertConsistent panics when the record violates an invariant that only a
// programming error can produce. Stores call it before persisting.
func (r *FileRecord) AssertConsistent() {
	if r.IsFolder && r.ContentHash != "" {
		panic(fmt.Sprintf("metadata: folder %q holds content hash %q", r.ID, r.ContentHash))
	}
	if r.IsFolder && r.FileURL != "" {
		panic(fmt.Sprintf("metadata: folder %q holds file url %q", r.ID, r.FileURL))
	}
	if r.IsLocal() {
		isPrivate, ok := PrivacyOfURL(r.FileURL)
		if !ok {
			panic(fmt.Sprintf("metadata: record %q has unrecognised file url %q", r.ID, r.FileURL))
		}
		if isPrivate != r.IsPrivate {
			panic(fmt.Sprintf("metadata: record %q is_private=%v disagrees with file url %q", r.ID, r.IsPrivate, r.FileURL))
		}
	}
}

// Clone returns a deep copy of the record.
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.AttachedTo != nil {
		a := *r.AttachedTo
		c.AttachedTo = &a
	}
	return &c
}
