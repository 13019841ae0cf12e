package config

import (
	"errors"
	"fmt"
	"sync"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the runtime-mutable part of the configuration. It is read by the
// ingestion pipeline and the storage provider on every call.
type Settings struct {
	StorageType      string `json:"storage_type"`
	S3Endpoint       string `json:"s3_endpoint,omitempty"`
	S3Bucket         string `json:"s3_bucket,omitempty"`
	S3AccessKey      string `json:"s3_access_key,omitempty"`
	S3SecretKey      string `json:"s3_secret_key,omitempty"`
	S3UseSSL         bool   `json:"s3_use_ssl"`
	MaxFileSize      int64  `json:"max_file_size"`
	MaxZipSize       int64  `json:"max_zip_size"`
	DefaultOCREngine string `json:"default_ocr_engine"`
}

// MinIO returns the object storage part of the settings.
func (s Settings) MinIO() MinIOConfig {
	return MinIOConfig{
		Endpoint:  s.S3Endpoint,
		AccessKey: s.S3AccessKey,
		SecretKey: s.S3SecretKey,
		Bucket:    s.S3Bucket,
		UseSSL:    s.S3UseSSL,
	}
}

// Validate checks the invariants every stored Settings value satisfies.
func (s Settings) Validate() error {
	switch s.StorageType {
	case StorageLocal:
	case StorageS3:
		if s.S3Endpoint == "" || s.S3Bucket == "" {
			return fmt.Errorf("%w: s3 storage requires endpoint and bucket", ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalidSettings, s.StorageType)
	}
	if s.MaxFileSize <= 0 || s.MaxZipSize <= 0 {
		return fmt.Errorf("%w: size limits must be positive", ErrInvalidSettings)
	}
	if s.DefaultOCREngine == "" {
		return fmt.Errorf("%w: default ocr engine is required", ErrInvalidSettings)
	}
	return nil
}

// SettingsStore holds the current Settings. It is safe for concurrent use.
type SettingsStore struct {
	mu       sync.RWMutex
	settings Settings
}

// NewSettingsStore creates a store seeded with initial.
func NewSettingsStore(initial Settings) *SettingsStore {
	return &SettingsStore{settings: initial}
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update replaces the settings after validation.
func (s *SettingsStore) Update(next Settings) (Settings, error) {
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = next
	return next, nil
}
