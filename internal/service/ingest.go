package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"docvault/internal/config"
	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/storage"
	"docvault/internal/thumbnail"
)

const mimeZipCompressed = "application/x-zip-compressed"

// IngestRequest is one uploaded file plus the options that apply to every
// document created from it.
type IngestRequest struct {
	File        io.ReaderAt
	Size        int64
	Filename    string
	ContentType string
	// Tags is a comma-separated list of tag names.
	Tags       string
	FolderPath string
	// OCREngine overrides the default engine when set.
	OCREngine string
}

// IngestResult lists every document created by one request.
type IngestResult struct {
	Documents []model.Document `json:"data"`
	Total     int              `json:"total"`
	Archive   bool             `json:"-"`
}

// fileInput is one file on its way through the single-file path.
type fileInput struct {
	r        io.Reader
	size     int64
	filename string
	mimeType string
}

// Ingest validates the upload and stores it as one document, or as one
// document per qualifying entry when the upload is a ZIP archive.
func (s *documentService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.File == nil || req.Size <= 0 {
		return nil, ErrFileRequired
	}
	settings := s.settings.Get()
	if req.Size > settings.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	mimeType := detectMime(req.ContentType, req.Filename, req.File, req.Size)
	if mimeType == model.MimeZip {
		return s.ingestArchive(ctx, req, settings)
	}

	doc, err := s.ingestFile(ctx, req, fileInput{
		r:        io.NewSectionReader(req.File, 0, req.Size),
		size:     req.Size,
		filename: path.Base(req.Filename),
		mimeType: mimeType,
	})
	if err != nil {
		return nil, err
	}
	return &IngestResult{Documents: []model.Document{*doc}, Total: 1}, nil
}

func (s *documentService) ingestArchive(ctx context.Context, req IngestRequest, settings config.Settings) (*IngestResult, error) {
	if req.Size > settings.MaxZipSize {
		return nil, ErrArchiveTooLarge
	}
	zr, err := zip.NewReader(req.File, req.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	res := &IngestResult{Documents: []model.Document{}, Archive: true}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.UncompressedSize64 > uint64(settings.MaxFileSize) {
			s.log.Info("archive_entry_skipped", logging.Fields{"entry": f.Name, "reason": "too large"})
			continue
		}
		mt := model.MimeByFilename(f.Name)
		if !model.IsImageMime(mt) && mt != model.MimePDF {
			s.log.Info("archive_entry_skipped", logging.Fields{"entry": f.Name, "reason": "unsupported type"})
			continue
		}

		doc, err := s.ingestEntry(ctx, req, f, mt)
		if err != nil {
			return nil, err
		}
		res.Documents = append(res.Documents, *doc)
	}

	if len(res.Documents) == 0 {
		return nil, ErrEmptyArchive
	}
	res.Total = len(res.Documents)
	s.log.Info("archive_ingested", logging.Fields{
		"filename":  req.Filename,
		"documents": res.Total,
		"entries":   len(zr.File),
	})
	return res, nil
}

func (s *documentService) ingestEntry(ctx context.Context, req IngestRequest, f *zip.File, mimeType string) (*model.Document, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, f.Name, err)
	}
	defer rc.Close()

	return s.ingestFile(ctx, req, fileInput{
		r:        rc,
		size:     int64(f.UncompressedSize64),
		filename: path.Base(f.Name),
		mimeType: mimeType,
	})
}

// ingestFile stores one file, derives its thumbnail, records it as PENDING
// and hands it to the OCR pool. Stored objects are removed again when the
// record cannot be created.
func (s *documentService) ingestFile(ctx context.Context, req IngestRequest, in fileInput) (*model.Document, error) {
	store, err := s.storage.Current()
	if err != nil {
		return nil, storageErr("resolve backend", err)
	}

	obj, err := store.Save(ctx, in.r, in.filename, storage.SaveOptions{
		Class:       storage.ClassDocument,
		Size:        in.size,
		ContentType: in.mimeType,
	})
	if err != nil {
		return nil, storageErr("save original", err)
	}

	var thumbPath string
	if model.IsImageMime(in.mimeType) {
		if key, ok := s.thumbs.Derive(ctx, store, obj.Key, thumbnail.DefaultBounds); ok {
			thumbPath = key
		}
	}

	rollback := func(cause error) error {
		s.removeObjects(ctx, store, obj.Key, thumbPath)
		return cause
	}

	tags, err := s.index.EnsureTags(ctx, model.SplitTagNames(req.Tags))
	if err != nil {
		return nil, rollback(fmt.Errorf("resolve tags: %w", err))
	}

	run := uuid.NewString()
	doc, err := s.index.Create(ctx, &model.Document{
		ID:            uuid.NewString(),
		Filename:      in.filename,
		MimeType:      in.mimeType,
		Size:          obj.Size,
		StoragePath:   obj.Key,
		ThumbnailPath: thumbPath,
		FolderPath:    model.NormalizeFolderPath(req.FolderPath),
		UploadDate:    time.Now().UTC(),
		OCRStatus:     model.OCRStatusPending,
		Tags:          tags,
		Metadata:      map[string]any{model.MetadataOCRRunKey: run},
	})
	if err != nil {
		return nil, rollback(fmt.Errorf("create document: %w", err))
	}

	s.log.Info("document_ingested", logging.Fields{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"mime_type":   doc.MimeType,
		"size":        doc.Size,
		"thumbnail":   thumbPath != "",
	})
	s.scheduleOCR(doc.ID, req.OCREngine, run)
	return doc, nil
}

// scheduleOCR submits an OCR run without waiting for it. run must be the
// token already stored on the document.
func (s *documentService) scheduleOCR(docID, engine, run string) {
	err := s.pool.Submit("ocr:"+docID, func(ctx context.Context) {
		s.ocr.Run(ctx, docID, engine, run)
	})
	if err != nil {
		s.log.Warn("ocr_submit_failed", logging.Fields{"document_id": docID, "error": err})
	}
}

func (s *documentService) removeObjects(ctx context.Context, store storage.Storage, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, err := store.Delete(ctx, key); err != nil {
			s.log.Warn("storage_delete_failed", logging.Fields{"key": key, "error": err})
		}
	}
}

// detectMime prefers the declared type, then the file extension, then the
// leading bytes of the content.
func detectMime(declared, filename string, r io.ReaderAt, size int64) string {
	mt := model.BaseMime(declared)
	if mt == mimeZipCompressed {
		return model.MimeZip
	}
	if mt != "" && mt != model.MimeOctetStream {
		return mt
	}
	if byExt := model.MimeByFilename(filename); byExt != "" {
		return byExt
	}

	head := make([]byte, 512)
	if size < int64(len(head)) {
		head = head[:size]
	}
	n, err := r.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return model.MimeOctetStream
	}
	return model.BaseMime(http.DetectContentType(head[:n]))
}
