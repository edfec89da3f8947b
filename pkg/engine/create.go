package engine

import (
	"context"
	"net/url"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/folder"
	"github.com/marmos91/dittofiles/pkg/media"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/permission"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// CreateRequest describes a new file.
//
// Exactly one of Content and FileURL must be set. FileURL is either a remote
// http(s) URL, stored by reference, or the file_url of bytes already under
// the managed root.
type CreateRequest struct {
	// FileName is the display name. Optional for URL references, where it
	// defaults to the last path segment.
	FileName string

	// Content is the file's bytes
	Content []byte

	// FileURL references existing remote or local bytes instead of Content
	FileURL string

	// IsPrivate selects the private partition. Ignored for local references,
	// whose scope follows their URL.
	IsPrivate bool

	// Folder is the parent folder. Defaults to Home, or Home/Attachments
	// for attached files.
	Folder string

	// AttachedTo optionally names the owning document
	AttachedTo *metadata.Attachment

	// ContentType overrides content sniffing
	ContentType string
}

// UploadRequest is the reduced request of the upload surface.
type UploadRequest struct {
	FileName   string
	IsPrivate  bool
	Content    []byte
	FileURL    string
	AttachedTo *metadata.Attachment
}

// UploadResult is what the upload surface returns to clients.
type UploadResult struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

// Upload creates a file and returns its name and URL.
func (e *Engine) Upload(ctx context.Context, tx *txn.Tx, actor permission.Actor, req UploadRequest) (UploadResult, error) {
	rec, err := e.Create(ctx, tx, actor, CreateRequest{
		FileName:   req.FileName,
		Content:    req.Content,
		FileURL:    req.FileURL,
		IsPrivate:  req.IsPrivate,
		AttachedTo: req.AttachedTo,
	})
	if err != nil {
		return UploadResult{}, err
	}
	return UploadResult{FileName: rec.FileName, FileURL: rec.FileURL}, nil
}

// Create stores a new file and persists its record.
//
// Content is hashed and looked up in the deduplication index first: when the
// same bytes already exist in the same privacy scope the new record points
// at them and nothing is written. Otherwise the bytes are written under the
// first free collision candidate of FileName and the write is registered for
// rollback with tx.
//
// Every validation (name, path safety, size, attachment limit, folder,
// permission) happens before anything is written.
//
// Returns the persisted record.
func (e *Engine) Create(ctx context.Context, tx *txn.Tx, actor permission.Actor, req CreateRequest) (rec *metadata.FileRecord, err error) {
	defer e.observe("Create", tx, time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 1: Validate the request shape
	// ========================================================================

	hasContent := req.Content != nil
	hasURL := req.FileURL != ""
	switch {
	case hasContent && hasURL:
		return nil, metadata.NewError(metadata.ErrInvalidArgument, req.FileName, "content and file_url are mutually exclusive")
	case !hasContent && !hasURL:
		return nil, metadata.NewError(metadata.ErrInvalidArgument, req.FileName, "no file content or file_url")
	}

	now := e.now()
	rec = &metadata.FileRecord{
		ID:          uuid.NewString(),
		IsPrivate:   req.IsPrivate,
		AttachedTo:  cloneAttachment(req.AttachedTo),
		Owner:       actor.User,
		ContentType: req.ContentType,
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	// ========================================================================
	// Step 2: Resolve the name, URL and bytes of each request kind
	// ========================================================================

	var data []byte
	switch {
	case hasURL && metadata.IsRemoteURL(req.FileURL):
		if err := e.prepareRemote(rec, req); err != nil {
			return nil, err
		}
	case hasURL:
		if err := e.prepareLocalRef(ctx, rec, req); err != nil {
			return nil, err
		}
	default:
		name, err := location.ValidateFileName(req.FileName)
		if err != nil {
			return nil, err
		}
		if err := e.checkSize(name, int64(len(req.Content))); err != nil {
			return nil, err
		}
		rec.FileName = name
		data = req.Content
	}

	// ========================================================================
	// Step 3: Folder, attachment limit and permission
	// ========================================================================

	rec.Folder = req.Folder
	if rec.Folder == "" {
		rec.Folder = folder.DefaultFolder(req.AttachedTo != nil)
	}
	if err := e.folders.EnsureRoots(ctx, tx); err != nil {
		return nil, err
	}
	if _, err := e.folders.Get(ctx, tx, rec.Folder); err != nil {
		return nil, err
	}
	if err := e.checkAttachmentLimit(ctx, tx, req.AttachedTo); err != nil {
		return nil, err
	}
	if err := e.authorize(rec, permission.Create, actor); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 4: Deduplicate or write the bytes
	// ========================================================================

	if hasContent {
		rec.ContentHash = e.hasher.Sum(data)
		rec.Size = int64(len(data))
		if rec.ContentType == "" {
			rec.ContentType = media.DetectContentType(data)
		}

		fileURL, err := e.storeBytes(ctx, tx, rec.FileName, data, rec.ContentHash, rec.IsPrivate, rec.ID)
		if err != nil {
			return nil, err
		}
		rec.FileURL = fileURL
	}

	// ========================================================================
	// Step 5: Persist the record
	// ========================================================================

	if err := e.store.PutFile(ctx, tx, rec); err != nil {
		return nil, err
	}

	logger.Info("created %s (%s) in %s", rec.FileName, rec.FileURL, rec.Folder)
	return rec, nil
}

// prepareRemote fills rec for a remote URL stored by reference.
func (e *Engine) prepareRemote(rec *metadata.FileRecord, req CreateRequest) error {
	name := req.FileName
	if name == "" {
		u, err := url.Parse(req.FileURL)
		if err != nil {
			return metadata.NewError(metadata.ErrInvalidArgument, req.FileURL, "invalid url: %v", err)
		}
		name = path.Base(u.Path)
		if name == "." || name == "/" {
			name = u.Host
		}
	}

	validated, err := location.ValidateFileName(name)
	if err != nil {
		return err
	}
	rec.FileName = validated
	rec.FileURL = req.FileURL
	return nil
}

// prepareLocalRef fills rec for a reference to bytes already on disk. The
// URL is validated before the filesystem is touched.
func (e *Engine) prepareLocalRef(ctx context.Context, rec *metadata.FileRecord, req CreateRequest) error {
	p, isPrivate, err := e.resolver.ResolveURL(req.FileURL)
	if err != nil {
		return err
	}

	name := req.FileName
	if name == "" {
		name = metadata.DiskName(req.FileURL)
	}
	if rec.FileName, err = location.ValidateFileName(name); err != nil {
		return err
	}

	data, err := e.bytes.Read(ctx, p)
	if err != nil {
		return err
	}
	if err := e.checkSize(rec.FileName, int64(len(data))); err != nil {
		return err
	}

	rec.FileURL = metadata.URLFor(metadata.DiskName(req.FileURL), isPrivate)
	rec.IsPrivate = isPrivate
	rec.ContentHash = e.hasher.Sum(data)
	rec.Size = int64(len(data))
	if rec.ContentType == "" {
		rec.ContentType = media.DetectContentType(data)
	}
	return nil
}

// storeBytes returns the file_url holding data in the given scope, writing
// it if no existing record already does.
//
// On a dedup miss the collision candidates of name are tried in order: a
// free candidate is written, a candidate already holding the same bytes is
// adopted and a candidate holding different bytes is skipped.
func (e *Engine) storeBytes(ctx context.Context, tx *txn.Tx, name string, data []byte, digest string, isPrivate bool, excludeID string) (string, error) {
	existing, err := e.index.Find(ctx, tx, digest, isPrivate, excludeID)
	if err != nil {
		return "", err
	}
	e.metrics.RecordDedup(existing != nil, isPrivate)
	if existing != nil {
		logger.Debug("dedup hit: %s reuses %s", name, existing.FileURL)
		return existing.FileURL, nil
	}

	for _, candidate := range location.Candidates(name, digest) {
		p, err := e.resolver.Resolve(candidate, isPrivate)
		if err != nil {
			return "", err
		}

		present, err := e.bytes.Exists(ctx, p)
		if err != nil {
			return "", err
		}
		if present {
			onDisk, err := e.bytes.Read(ctx, p)
			if err != nil {
				return "", err
			}
			if e.hasher.Sum(onDisk) == digest {
				logger.Debug("dedup: %s already holds the bytes of %s", candidate, name)
				return location.URL(candidate, isPrivate), nil
			}
			continue
		}

		if _, err := e.bytes.Write(ctx, tx, p, data, false); err != nil {
			return "", err
		}
		e.metrics.RecordBytesWritten(int64(len(data)))
		logger.Debug("dedup miss: wrote %s (%s)", candidate, humanBytes(int64(len(data))))
		return location.URL(candidate, isPrivate), nil
	}

	return "", metadata.NewError(metadata.ErrAlreadyExists, name, "every candidate name holds different content")
}

func cloneAttachment(a *metadata.Attachment) *metadata.Attachment {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
