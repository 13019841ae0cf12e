package service

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
	"docvault/internal/logging"
	"docvault/internal/ocr"
	"docvault/internal/repository"
	"docvault/internal/repository/memory"
	"docvault/internal/storage"
	"docvault/internal/thumbnail"
	"docvault/internal/worker"
)

// stubEngine returns fixed text, or err when set. hook runs before each call.
type stubEngine struct {
	name    string
	version string
	text    string
	pages   []string
	err     error
	hook    func(ctx context.Context)

	mu    sync.Mutex
	calls int
}

func (e *stubEngine) Name() string    { return e.name }
func (e *stubEngine) Version() string { return e.version }

func (e *stubEngine) ProcessImage(ctx context.Context, r io.Reader) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.hook != nil {
		e.hook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

func (e *stubEngine) ProcessPDF(ctx context.Context, r io.Reader) ([]string, error) {
	if _, err := e.ProcessImage(ctx, r); err != nil {
		return nil, err
	}
	return e.pages, nil
}

func (e *stubEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// syncSubmitter runs every job before Submit returns.
type syncSubmitter struct {
	mu    sync.Mutex
	names []string
}

func (s *syncSubmitter) Submit(name string, job worker.Job) error {
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	job(context.Background())
	return nil
}

// holdSubmitter records jobs without running them.
type holdSubmitter struct {
	names []string
	err   error
}

func (s *holdSubmitter) Submit(name string, job worker.Job) error {
	if s.err != nil {
		return s.err
	}
	s.names = append(s.names, name)
	return nil
}

type staticProvider struct {
	store storage.Storage
	err   error
	info  storage.Info
}

func (p *staticProvider) Current() (storage.Storage, error) { return p.store, p.err }
func (p *staticProvider) Info() (storage.Info, error)       { return p.info, p.err }

type staticThumbnailer struct {
	key string
}

func (t staticThumbnailer) Derive(context.Context, storage.Storage, string, thumbnail.Bounds) (string, bool) {
	return t.key, t.key != ""
}

func testSettings() config.Settings {
	return config.Settings{
		StorageType:      config.StorageLocal,
		MaxFileSize:      1 << 20,
		MaxZipSize:       4 << 20,
		DefaultOCREngine: "stub",
	}
}

// fixture wires the real in-memory index, local storage, thumbnailer and
// runner around a stub engine.
type fixture struct {
	index    *memory.Index
	settings *config.SettingsStore
	provider *storage.Provider
	engine   *stubEngine
	engines  *ocr.Registry
	runner   *OCRRunner
	submit   *syncSubmitter
	svc      DocumentService
	root     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		index:    memory.New(),
		settings: config.NewSettingsStore(testSettings()),
		engine:   &stubEngine{name: "stub", version: "1.0", text: "extracted text", pages: []string{"page one", "page two"}},
		engines:  ocr.NewRegistry(),
		submit:   &syncSubmitter{},
		root:     t.TempDir(),
	}
	f.provider = storage.NewProvider(f.settings, f.root)
	f.engines.Register("stub", func() (ocr.Engine, error) { return f.engine, nil })

	runner, err := NewOCRRunner(f.index, f.provider, f.engines, f.settings, time.Second, logging.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)
	f.runner = runner

	f.svc = NewDocumentService(DocumentDeps{
		Index:    f.index,
		Storage:  f.provider,
		Thumbs:   thumbnail.New(logging.Discard()),
		Settings: f.settings,
		Pool:     f.submit,
		OCR:      f.runner,
	})
	return f
}

func (f *fixture) store(t *testing.T) storage.Storage {
	t.Helper()
	st, err := f.provider.Current()
	require.NoError(t, err)
	return st
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type zipEntry struct {
	name string
	data []byte
	dir  bool
}

func zipBytes(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if e.dir {
			_, err := zw.Create(e.name + "/")
			require.NoError(t, err)
			continue
		}
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func upload(data []byte, filename, contentType string) IngestRequest {
	return IngestRequest{
		File:        bytes.NewReader(data),
		Size:        int64(len(data)),
		Filename:    filename,
		ContentType: contentType,
	}
}

func repositoryPage() repository.PageQuery {
	return repository.PageQuery{Limit: 100}
}
