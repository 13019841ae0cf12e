package service

import (
	"context"
	"fmt"

	"docvault/internal/config"
	"docvault/internal/logging"
	"docvault/internal/ocr"
)

// SystemService exposes engine discovery and the runtime settings.
type SystemService interface {
	Engines(ctx context.Context) []ocr.EngineInfo
	Settings(ctx context.Context) config.Settings
	UpdateSettings(ctx context.Context, next config.Settings) (config.Settings, error)
}

type systemService struct {
	engines  EngineRegistry
	settings *config.SettingsStore
	log      *logging.Logger
}

func NewSystemService(engines EngineRegistry, settings *config.SettingsStore, log *logging.Logger) SystemService {
	if log == nil {
		log = logging.Discard()
	}
	return &systemService{engines: engines, settings: settings, log: log.With("system")}
}

func (s *systemService) Engines(ctx context.Context) []ocr.EngineInfo {
	return s.engines.Describe()
}

func (s *systemService) Settings(ctx context.Context) config.Settings {
	return s.settings.Get()
}

// UpdateSettings replaces the settings. The default engine must be registered,
// though it need not be available right now.
func (s *systemService) UpdateSettings(ctx context.Context, next config.Settings) (config.Settings, error) {
	if next.DefaultOCREngine != "" && !s.engines.Has(next.DefaultOCREngine) {
		return config.Settings{}, fmt.Errorf("%w: unknown ocr engine %q", ErrValidation, next.DefaultOCREngine)
	}
	updated, err := s.settings.Update(next)
	if err != nil {
		return config.Settings{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	s.log.Info("settings_updated", logging.Fields{
		"storage_type":       updated.StorageType,
		"default_ocr_engine": updated.DefaultOCREngine,
		"max_file_size":      updated.MaxFileSize,
		"max_zip_size":       updated.MaxZipSize,
	})
	return updated, nil
}
