package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
	"docvault/internal/logging"
)

func memoryConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		IndexBackend: IndexMemory,
		Storage:      config.StorageConfig{Type: config.StorageLocal, LocalRoot: t.TempDir()},
		OCR: config.OCRConfig{
			DefaultEngine: "tesseract",
			Workers:       2,
			Timeout:       time.Second,
			Languages:     []string{"eng"},
			OllamaModel:   "llava",
		},
		Limits: config.LimitsConfig{MaxFileSize: 1 << 20, MaxZipSize: 4 << 20},
	}
}

func TestNew_Memory(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t), logging.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)

	assert.Nil(t, a.DB)
	assert.NotNil(t, a.Documents)
	assert.NotNil(t, a.Tags)
	assert.NotNil(t, a.System)
	assert.Equal(t, []string{"ollama", "tesseract"}, a.Engines.Names())
	assert.Equal(t, "tesseract", a.Settings.Get().DefaultOCREngine)

	info, err := a.Storage.Info()
	require.NoError(t, err)
	assert.Equal(t, config.StorageLocal, info.Type)

	require.NoError(t, a.Close(context.Background()))
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.AppConfig)
	}{
		{name: "unknown index backend", mutate: func(c *config.AppConfig) { c.IndexBackend = "sqlite" }},
		{name: "unknown storage type", mutate: func(c *config.AppConfig) { c.Storage.Type = "ftp" }},
		{name: "missing size limit", mutate: func(c *config.AppConfig) { c.Limits.MaxZipSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig(t)
			tt.mutate(cfg)
			_, err := New(context.Background(), cfg, nil, prometheus.NewRegistry())
			assert.Error(t, err)
		})
	}
}
