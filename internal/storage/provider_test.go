package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
)

func testSettings(storageType string) config.Settings {
	return config.Settings{
		StorageType:      storageType,
		S3Endpoint:       "minio:9000",
		S3Bucket:         "docs",
		S3AccessKey:      "ak",
		S3SecretKey:      "sk",
		MaxFileSize:      10,
		MaxZipSize:       20,
		DefaultOCREngine: "tesseract",
	}
}

func TestProvider_FollowsSettings(t *testing.T) {
	settings := config.NewSettingsStore(testSettings(config.StorageLocal))
	p := NewProvider(settings, t.TempDir())

	var minioBuilds int
	fake := &localStorage{root: "bucket"}
	p.newMinIO = func(cfg config.MinIOConfig) (Storage, error) {
		minioBuilds++
		assert.Equal(t, "docs", cfg.Bucket)
		return fake, nil
	}

	local, err := p.Current()
	require.NoError(t, err)
	_, isLocal := local.(*localStorage)
	assert.True(t, isLocal)

	_, err = settings.Update(testSettings(config.StorageS3))
	require.NoError(t, err)

	remote, err := p.Current()
	require.NoError(t, err)
	assert.Same(t, fake, remote)

	again, err := p.Current()
	require.NoError(t, err)
	assert.Same(t, remote, again)
	assert.Equal(t, 1, minioBuilds)

	info, err := p.Info()
	require.NoError(t, err)
	assert.Equal(t, config.StorageS3, info.Type)
	assert.Equal(t, "bucket", info.Location)
}

func TestProvider_InitError(t *testing.T) {
	settings := config.NewSettingsStore(testSettings(config.StorageS3))
	p := NewProvider(settings, t.TempDir())
	p.newMinIO = func(config.MinIOConfig) (Storage, error) { return nil, errors.New("unreachable") }

	_, err := p.Current()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}
