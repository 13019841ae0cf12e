package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"docvault/internal/model"
)

var (
	// ErrNotFound is returned when a document or tag id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTagExists is returned when a tag name collides case-insensitively with another tag.
	ErrTagExists = errors.New("tag already exists")
	// ErrStaleRun is returned by Update when IfOCRRun no longer matches the document.
	ErrStaleRun = errors.New("superseded ocr run")
)

// DocumentIndex is the metadata store for documents and tags.
// No business logic here, only persistence and queries.
// Every returned value is a copy; mutating it never changes the index.
type DocumentIndex interface {
	// Create inserts a new document. Tags must reference existing tag ids.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)
	// Get returns a document by id or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Document, error)
	// Update applies patch atomically and returns the updated document.
	Update(ctx context.Context, id string, patch DocumentPatch) (*model.Document, error)
	// Delete removes a document and returns what was removed.
	Delete(ctx context.Context, id string) (*model.Document, error)
	// List returns a page of documents, newest first.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)
	// Search returns the page of documents matching every given criterion.
	Search(ctx context.Context, q SearchQuery) (*PageResult[model.Document], error)
	// FolderCounts returns the number of documents per exact folder path.
	FolderCounts(ctx context.Context) (map[string]int, error)
	Stats(ctx context.Context) (Stats, error)

	// EnsureTags returns the tags named names, creating missing ones, in input order.
	// Lookup is case-insensitive and the whole call is atomic.
	EnsureTags(ctx context.Context, names []string) ([]model.Tag, error)
	CreateTag(ctx context.Context, tag model.Tag) (*model.Tag, error)
	GetTag(ctx context.Context, id string) (*model.Tag, error)
	GetTagByName(ctx context.Context, name string) (*model.Tag, error)
	ListTags(ctx context.Context) ([]model.Tag, error)
	UpdateTag(ctx context.Context, id string, patch TagPatch) (*model.Tag, error)
	// DeleteTag removes a tag and detaches it from every document.
	DeleteTag(ctx context.Context, id string) error
	// AddTag attaches a tag; attaching an attached tag is a no-op.
	AddTag(ctx context.Context, docID, tagID string) (*model.Document, error)
	// RemoveTag detaches a tag; detaching an absent tag is a no-op.
	RemoveTag(ctx context.Context, docID, tagID string) (*model.Document, error)
}

// DocumentPatch lists the fields to change. Nil pointers are left untouched.
type DocumentPatch struct {
	FolderPath       *string
	ThumbnailPath    *string
	OCRStatus        *model.OCRStatus
	OCRText          *string
	OCREngine        *string
	OCREngineVersion *string
	// SetMetadata entries are merged into the metadata map.
	SetMetadata map[string]any
	// DeleteMetadata keys are removed before SetMetadata is applied.
	DeleteMetadata []string
	// IfOCRRun makes the patch conditional: it applies only while
	// metadata[ocr_run] equals this token, else Update returns ErrStaleRun.
	IfOCRRun string
}

// TagPatch lists tag fields to change. Empty values are left untouched.
type TagPatch struct {
	Name  string
	Color string
}

// PageQuery holds limit/offset pagination parameters and an optional exact folder filter.
type PageQuery struct {
	Limit      int
	Offset     int
	FolderPath string
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// Stats summarises the index.
type Stats struct {
	DocumentCount int                     `json:"document_count"`
	TotalSize     int64                   `json:"total_size"`
	ByStatus      map[model.OCRStatus]int `json:"by_status"`
}

const (
	SortUploadDate = "upload_date"
	SortFilename   = "filename"
	SortSize       = "size"

	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultSearchLimit = 20
	MaxSearchLimit     = 1000
)

// SearchQuery combines every criterion with AND. Zero values mean "no filter".
type SearchQuery struct {
	Text       string
	Tags       []string
	FolderPath string
	MimeTypes  []string
	DateFrom   *time.Time
	DateTo     *time.Time
	SortBy     string
	SortOrder  string
	Limit      int
	Offset     int
}

// Normalize fills defaults and canonicalises values. Unknown sort keys fall back
// to upload date, unknown orders to descending.
func (q SearchQuery) Normalize() SearchQuery {
	q.Text = strings.TrimSpace(q.Text)
	if q.FolderPath != "" {
		q.FolderPath = model.NormalizeFolderPath(q.FolderPath)
	}
	q.Tags = compact(q.Tags, false)
	q.MimeTypes = compact(q.MimeTypes, true)

	switch q.SortBy {
	case SortUploadDate, SortFilename, SortSize:
	default:
		q.SortBy = SortUploadDate
	}
	q.SortOrder = strings.ToLower(q.SortOrder)
	if q.SortOrder != SortAsc {
		q.SortOrder = SortDesc
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Limit > MaxSearchLimit {
		q.Limit = MaxSearchLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func compact(in []string, lower bool) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if lower {
			s = strings.ToLower(s)
		}
		out = append(out, s)
	}
	return out
}

// StringPtr is a small helper for building patches.
func StringPtr(s string) *string { return &s }

// StatusPtr is a small helper for building patches.
func StatusPtr(s model.OCRStatus) *model.OCRStatus { return &s }
