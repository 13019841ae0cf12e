package storage

import (
	"fmt"
	"sync"

	"docvault/internal/config"
)

// Info describes the active backend.
type Info struct {
	Type     string `json:"storage_type"`
	Location string `json:"location"`
}

// Provider resolves the active backend from the runtime settings on every call.
// Backends are built once per distinct configuration and reused afterwards.
type Provider struct {
	settings  *config.SettingsStore
	localRoot string

	newLocal func(root string) (Storage, error)
	newMinIO func(cfg config.MinIOConfig) (Storage, error)

	mu    sync.Mutex
	cache map[string]Storage
}

// NewProvider creates a provider reading settings and keeping local objects under localRoot.
func NewProvider(settings *config.SettingsStore, localRoot string) *Provider {
	return &Provider{
		settings:  settings,
		localRoot: localRoot,
		newLocal:  NewLocal,
		newMinIO:  NewMinIO,
		cache:     make(map[string]Storage),
	}
}

// Current returns the backend selected by the current settings.
func (p *Provider) Current() (Storage, error) {
	s := p.settings.Get()
	key := cacheKey(s, p.localRoot)

	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.cache[key]; ok {
		return st, nil
	}

	var (
		st  Storage
		err error
	)
	switch s.StorageType {
	case config.StorageS3:
		st, err = p.newMinIO(s.MinIO())
	case config.StorageLocal, "":
		st, err = p.newLocal(p.localRoot)
	default:
		err = fmt.Errorf("unknown storage type %q", s.StorageType)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", s.StorageType, err)
	}
	p.cache[key] = st
	return st, nil
}

// Info reports the active backend. The backend is resolved (and initialised) if needed.
func (p *Provider) Info() (Info, error) {
	st, err := p.Current()
	if err != nil {
		return Info{}, err
	}
	t := p.settings.Get().StorageType
	if t == "" {
		t = config.StorageLocal
	}
	return Info{Type: t, Location: st.Location()}, nil
}

func cacheKey(s config.Settings, localRoot string) string {
	if s.StorageType == config.StorageS3 {
		return fmt.Sprintf("s3|%s|%s|%s|%s|%t", s.S3Endpoint, s.S3Bucket, s.S3AccessKey, s.S3SecretKey, s.S3UseSSL)
	}
	return "local|" + localRoot
}
