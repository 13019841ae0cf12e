// Package storage contains the durable byte store used for originals and thumbnails.
// Two variants exist (local filesystem and S3-compatible object storage); callers only
// see the Storage interface and never branch on the active variant.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a path does not resolve to a stored object.
	ErrNotFound = errors.New("object not found")
	// ErrPresignUnsupported is returned by backends that cannot hand out direct URLs.
	ErrPresignUnsupported = errors.New("presigned urls are not supported by this backend")
)

// Class selects the namespace a new object is stored under.
type Class string

const (
	ClassDocument  Class = "documents"
	ClassThumbnail Class = "thumbnails"
)

// SaveOptions define optional parameters for storing objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
type SaveOptions struct {
	Class       Class
	Size        int64
	ContentType string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the byte store contract shared by every backend.
// Methods use context and streaming readers; objects are never fully buffered.
type Storage interface {
	// Save stores r under a fresh key derived from a random id plus the original extension.
	// The caller-supplied filename is never used as a key.
	Save(ctx context.Context, r io.Reader, originalFilename string, opt SaveOptions) (ObjectInfo, error)
	// Fetch streams an object. It fails with ErrNotFound when the key does not resolve.
	Fetch(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object, reporting false (and no error) when it was already absent.
	Delete(ctx context.Context, key string) (bool, error)
	// PresignGet returns a time-limited URL that can be used to download the object without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Location describes where objects live (directory or bucket).
	Location() string
}

// NewKey builds a collision-free key for class keeping only a sane extension of
// the original filename.
func NewKey(class Class, originalFilename string) string {
	if class == "" {
		class = ClassDocument
	}
	return string(class) + "/" + uuid.NewString() + safeExt(originalFilename)
}

func safeExt(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
