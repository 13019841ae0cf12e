package service

import (
	"context"

	"docvault/internal/ocr"
	"docvault/internal/storage"
	"docvault/internal/thumbnail"
	"docvault/internal/worker"
)

// StorageProvider resolves the byte store selected by the current settings.
type StorageProvider interface {
	Current() (storage.Storage, error)
	Info() (storage.Info, error)
}

// Thumbnailer derives a preview for a stored image.
type Thumbnailer interface {
	Derive(ctx context.Context, store storage.Storage, key string, bounds thumbnail.Bounds) (string, bool)
}

// EngineRegistry looks up OCR engines by name.
type EngineRegistry interface {
	Get(name string) (ocr.Engine, error)
	// Has checks registration only; it never builds an engine.
	Has(name string) bool
	Describe() []ocr.EngineInfo
}

// Submitter schedules background work without blocking.
type Submitter interface {
	Submit(name string, job worker.Job) error
}
