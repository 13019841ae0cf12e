package model

import (
	"strings"
	"time"
)

// OCRStatus is the processing state of a document's text extraction.
type OCRStatus string

const (
	OCRStatusPending    OCRStatus = "pending"
	OCRStatusProcessing OCRStatus = "processing"
	OCRStatusCompleted  OCRStatus = "completed"
	OCRStatusFailed     OCRStatus = "failed"
)

// Valid reports whether s is one of the known states.
func (s OCRStatus) Valid() bool {
	switch s {
	case OCRStatusPending, OCRStatusProcessing, OCRStatusCompleted, OCRStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends a processing run.
func (s OCRStatus) Terminal() bool {
	return s == OCRStatusCompleted || s == OCRStatusFailed
}

// MetadataErrorKey is the metadata entry that carries the description of a failed OCR run.
const MetadataErrorKey = "error"

// MetadataOCRRunKey holds the token of the latest OCR submission. Only the run
// carrying that token may change the document's OCR fields.
const MetadataOCRRunKey = "ocr_run"

// Document represents one ingested file and the outcome of its text extraction.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID               string         `json:"id"`
	Filename         string         `json:"filename"`
	MimeType         string         `json:"mime_type"`
	Size             int64          `json:"size"`
	StoragePath      string         `json:"storage_path"`
	ThumbnailPath    string         `json:"thumbnail_path,omitempty"`
	FolderPath       string         `json:"folder_path"`
	UploadDate       time.Time      `json:"upload_date"`
	OCRStatus        OCRStatus      `json:"ocr_status"`
	OCRText          string         `json:"ocr_text,omitempty"`
	OCREngine        string         `json:"ocr_engine,omitempty"`
	OCREngineVersion string         `json:"ocr_engine_version,omitempty"`
	Tags             []Tag          `json:"tags"`
	Metadata         map[string]any `json:"metadata"`
}

// Clone returns a deep copy so callers never alias index-owned state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Tags = append([]Tag(nil), d.Tags...)
	if out.Tags == nil {
		out.Tags = []Tag{}
	}
	out.Metadata = make(map[string]any, len(d.Metadata))
	for k, v := range d.Metadata {
		out.Metadata[k] = v
	}
	return &out
}

// HasTag reports whether a tag with the given id is attached.
func (d *Document) HasTag(tagID string) bool {
	for _, t := range d.Tags {
		if t.ID == tagID {
			return true
		}
	}
	return false
}

// IsImage reports whether the document holds an image.
func (d *Document) IsImage() bool {
	return IsImageMime(d.MimeType)
}

// IsPDF reports whether the document holds a PDF.
func (d *Document) IsPDF() bool {
	return d.MimeType == MimePDF
}

const (
	MimePDF         = "application/pdf"
	MimeZip         = "application/zip"
	MimeOctetStream = "application/octet-stream"
)

// IsImageMime reports whether mt is an image/* type.
func IsImageMime(mt string) bool {
	return strings.HasPrefix(mt, "image/")
}

// NormalizeFolderPath returns p with exactly one leading and trailing slash.
// Empty input maps to the root folder.
func NormalizeFolderPath(p string) string {
	p = strings.TrimSpace(p)
	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return "/"
	}
	return "/" + strings.Join(kept, "/") + "/"
}
