// Package app assembles the document pipeline from configuration. It is shared
// by the HTTP server and the command line tool.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	"docvault/internal/logging"
	"docvault/internal/ocr"
	"docvault/internal/ocr/ollama"
	"docvault/internal/ocr/tesseract"
	"docvault/internal/repository"
	"docvault/internal/repository/memory"
	"docvault/internal/repository/postgres"
	"docvault/internal/service"
	"docvault/internal/storage"
	"docvault/internal/thumbnail"
	"docvault/internal/worker"
)

// Index backends selectable with INDEX_BACKEND.
const (
	IndexMemory   = "memory"
	IndexPostgres = "postgres"
)

// App owns every long-lived component. Close releases them in dependency order.
type App struct {
	Config   *config.AppConfig
	Log      *logging.Logger
	Settings *config.SettingsStore
	Storage  *storage.Provider
	Index    repository.DocumentIndex
	// DB is nil with the in-memory index.
	DB      *sql.DB
	Engines *ocr.Registry
	Pool    *worker.Pool

	Documents service.DocumentService
	Tags      service.TagService
	System    service.SystemService
}

// New wires the application. OCR metrics are registered on reg.
func New(ctx context.Context, cfg *config.AppConfig, log *logging.Logger, reg prometheus.Registerer) (*App, error) {
	if log == nil {
		log = logging.Discard()
	}

	settings := cfg.Settings()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("initial settings: %w", err)
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Settings: config.NewSettingsStore(settings),
		Engines:  Engines(cfg.OCR),
		Pool:     worker.NewPool(cfg.OCR.Workers, log.With("worker")),
	}
	a.Storage = storage.NewProvider(a.Settings, cfg.Storage.LocalRoot)

	switch cfg.IndexBackend {
	case "", IndexMemory:
		a.Index = memory.New()
	case IndexPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database, log.With("database"))
		if err != nil {
			return nil, err
		}
		if err := migration.EnsureMigrated(ctx, db, log.With("migration"), cfg.Database.Host); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.DB = db
		a.Index = postgres.NewDocumentPostgres(db)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}

	runner, err := service.NewOCRRunner(a.Index, a.Storage, a.Engines, a.Settings, cfg.OCR.Timeout, log.With("ocr"), reg)
	if err != nil {
		a.closeDB()
		return nil, fmt.Errorf("ocr runner: %w", err)
	}

	a.Documents = service.NewDocumentService(service.DocumentDeps{
		Index:    a.Index,
		Storage:  a.Storage,
		Thumbs:   thumbnail.New(log.With("thumbnail")),
		Settings: a.Settings,
		Pool:     a.Pool,
		OCR:      runner,
		Log:      log,
	})
	a.Tags = service.NewTagService(a.Index, log)
	a.System = service.NewSystemService(a.Engines, a.Settings, log)

	log.Info("app_ready", logging.Fields{
		"index_backend":  cfg.IndexBackend,
		"storage_type":   settings.StorageType,
		"ocr_engines":    a.Engines.Names(),
		"default_engine": settings.DefaultOCREngine,
		"ocr_workers":    cfg.OCR.Workers,
	})
	return a, nil
}

// Engines registers every OCR engine the binary knows about. Engines are built
// lazily, so an unreachable Ollama server only matters once it is selected.
func Engines(c config.OCRConfig) *ocr.Registry {
	rast := ocr.NewPdftoppm(c.PDFRasterizer, c.PDFDPI)

	reg := ocr.NewRegistry()
	reg.Register(tesseract.Name, tesseract.Factory(c.Languages, rast))
	reg.Register(ollama.Name, ollama.Factory(ollama.Config{
		Host:   c.OllamaHost,
		Model:  c.OllamaModel,
		Prompt: c.OllamaPrompt,
	}, rast))
	return reg
}

// Close drains pending OCR runs until ctx is done, then closes the database.
func (a *App) Close(ctx context.Context) error {
	err := a.Pool.Shutdown(ctx)
	if err != nil {
		a.Log.Warn("ocr_drain_incomplete", logging.Fields{"error": err})
	}
	return errors.Join(err, a.closeDB())
}

func (a *App) closeDB() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
