package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"docvault/internal/config"
	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// ListQuery selects a page of documents, optionally within one folder.
type ListQuery struct {
	Limit      int
	Offset     int
	FolderPath string
}

// Content is a stored object opened for streaming. Callers close Body.
type Content struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	Filename    string
}

// FolderContents is one folder with the documents filed directly in it.
type FolderContents struct {
	Path      string           `json:"path"`
	Name      string           `json:"name"`
	Documents []model.Document `json:"documents"`
	Total     int              `json:"total"`
}

// StorageInfo summarizes what is stored and where.
type StorageInfo struct {
	TotalDocuments  int                     `json:"total_documents"`
	TotalSize       int64                   `json:"total_size"`
	StorageType     string                  `json:"storage_type"`
	StorageLocation string                  `json:"storage_location"`
	ByStatus        map[model.OCRStatus]int `json:"by_status"`
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Ingest stores an upload (or every qualifying entry of a ZIP upload) and
	// schedules OCR for each created document.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
	List(ctx context.Context, q ListQuery) (*DocumentListResult, error)
	Get(ctx context.Context, id string) (*model.Document, error)
	// Delete removes the record. Stored bytes are removed best-effort.
	Delete(ctx context.Context, id string) error
	Move(ctx context.Context, id, folderPath string) (*model.Document, error)
	Original(ctx context.Context, id string) (*Content, error)
	Thumbnail(ctx context.Context, id string) (*Content, error)
	// ReOCR resets the document to PENDING and schedules a new run.
	ReOCR(ctx context.Context, id, engine string) (*model.Document, error)
	Search(ctx context.Context, q repository.SearchQuery) (*DocumentListResult, error)
	Folders(ctx context.Context) ([]model.Folder, error)
	CreateFolder(ctx context.Context, p string) (model.Folder, error)
	FolderContents(ctx context.Context, p string, limit, offset int) (*FolderContents, error)
	StorageInfo(ctx context.Context) (*StorageInfo, error)
}

// DocumentDeps are the collaborators of the document service.
type DocumentDeps struct {
	Index    repository.DocumentIndex
	Storage  StorageProvider
	Thumbs   Thumbnailer
	Settings *config.SettingsStore
	Pool     Submitter
	OCR      OCRJob
	Log      *logging.Logger
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	index    repository.DocumentIndex
	storage  StorageProvider
	thumbs   Thumbnailer
	settings *config.SettingsStore
	pool     Submitter
	ocr      OCRJob
	log      *logging.Logger
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(d DocumentDeps) DocumentService {
	log := d.Log
	if log == nil {
		log = logging.Discard()
	}
	return &documentService{
		index:    d.Index,
		storage:  d.Storage,
		thumbs:   d.Thumbs,
		settings: d.Settings,
		pool:     d.Pool,
		ocr:      d.OCR,
		log:      log.With("documents"),
	}
}

func (s *documentService) List(ctx context.Context, q ListQuery) (*DocumentListResult, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	pq := repository.PageQuery{Limit: q.Limit, Offset: q.Offset}
	if q.FolderPath != "" {
		pq.FolderPath = model.NormalizeFolderPath(q.FolderPath)
	}

	res, err := s.index.List(ctx, pq)
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.index.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return doc, nil
}

// Delete removes the record first so a storage outage never leaves a
// document pointing at bytes that may or may not exist.
func (s *documentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	doc, err := s.index.Delete(ctx, id)
	if err != nil {
		return translate(err)
	}

	store, err := s.storage.Current()
	if err != nil {
		s.log.Warn("storage_delete_failed", logging.Fields{"document_id": id, "error": err})
		return nil
	}
	s.removeObjects(ctx, store, doc.StoragePath, doc.ThumbnailPath)
	s.log.Info("document_deleted", logging.Fields{"document_id": id})
	return nil
}

func (s *documentService) Move(ctx context.Context, id, folderPath string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	folder := model.NormalizeFolderPath(folderPath)
	doc, err := s.index.Update(ctx, id, repository.DocumentPatch{FolderPath: &folder})
	if err != nil {
		return nil, translate(err)
	}
	return doc, nil
}

func (s *documentService) Original(ctx context.Context, id string) (*Content, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.open(ctx, doc.StoragePath)
	if err != nil {
		return nil, err
	}
	c.Filename = doc.Filename
	if c.ContentType == "" || c.ContentType == model.MimeOctetStream {
		c.ContentType = doc.MimeType
	}
	return c, nil
}

func (s *documentService) Thumbnail(ctx context.Context, id string) (*Content, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.ThumbnailPath == "" {
		return nil, fmt.Errorf("%w: document %s has no thumbnail", ErrNotFound, id)
	}
	return s.open(ctx, doc.ThumbnailPath)
}

func (s *documentService) open(ctx context.Context, key string) (*Content, error) {
	store, err := s.storage.Current()
	if err != nil {
		return nil, storageErr("resolve backend", err)
	}
	rc, info, err := store.Fetch(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: stored object %s", ErrNotFound, key)
		}
		return nil, storageErr("fetch", err)
	}
	return &Content{Body: rc, ContentType: info.ContentType, Size: info.Size}, nil
}

func (s *documentService) ReOCR(ctx context.Context, id, engine string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	// A fresh token supersedes any run still in flight for this document.
	run := uuid.NewString()
	doc, err := s.index.Update(ctx, id, repository.DocumentPatch{
		OCRStatus:   repository.StatusPtr(model.OCRStatusPending),
		SetMetadata: map[string]any{model.MetadataOCRRunKey: run},
	})
	if err != nil {
		return nil, translate(err)
	}
	s.scheduleOCR(id, engine, run)
	return doc, nil
}

func (s *documentService) Search(ctx context.Context, q repository.SearchQuery) (*DocumentListResult, error) {
	res, err := s.index.Search(ctx, q.Normalize())
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *documentService) Folders(ctx context.Context) ([]model.Folder, error) {
	counts, err := s.index.FolderCounts(ctx)
	if err != nil {
		return nil, err
	}
	return model.DeriveFolders(counts), nil
}

// CreateFolder only normalizes the path: folders exist implicitly through
// the documents filed in them.
func (s *documentService) CreateFolder(ctx context.Context, p string) (model.Folder, error) {
	folder := model.NormalizeFolderPath(p)
	counts, err := s.index.FolderCounts(ctx)
	if err != nil {
		return model.Folder{}, err
	}
	return model.Folder{Path: folder, Name: model.FolderName(folder), DocumentCount: counts[folder]}, nil
}

func (s *documentService) FolderContents(ctx context.Context, p string, limit, offset int) (*FolderContents, error) {
	folder := model.NormalizeFolderPath(p)
	res, err := s.List(ctx, ListQuery{Limit: limit, Offset: offset, FolderPath: folder})
	if err != nil {
		return nil, err
	}
	return &FolderContents{
		Path:      folder,
		Name:      model.FolderName(folder),
		Documents: res.Items,
		Total:     res.Total,
	}, nil
}

func (s *documentService) StorageInfo(ctx context.Context) (*StorageInfo, error) {
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return nil, err
	}
	info, err := s.storage.Info()
	if err != nil {
		return nil, storageErr("describe backend", err)
	}
	return &StorageInfo{
		TotalDocuments:  stats.DocumentCount,
		TotalSize:       stats.TotalSize,
		StorageType:     info.Type,
		StorageLocation: info.Location,
		ByStatus:        stats.ByStatus,
	}, nil
}

// translate maps index errors onto service errors.
func translate(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if errors.Is(err, repository.ErrTagExists) {
		return ErrTagExists
	}
	return err
}
