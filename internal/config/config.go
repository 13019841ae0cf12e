package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig holds the storage backend selection and local root.
type StorageConfig struct {
	Type      string
	LocalRoot string
}

// OCRConfig holds OCR engine and worker settings.
type OCRConfig struct {
	DefaultEngine   string
	Workers         int
	Timeout         time.Duration
	Languages       []string
	PDFRasterizer   string
	PDFDPI          int
	OllamaHost      string
	OllamaModel     string
	OllamaPrompt    string
	ShutdownTimeout time.Duration
}

// LimitsConfig holds upload size limits in bytes. MaxFileSize and MaxZipSize
// seed the runtime settings; MaxBodySize is the fixed HTTP ceiling.
type LimitsConfig struct {
	MaxFileSize int64
	MaxZipSize  int64
	MaxBodySize int64
}

// multipartOverhead covers form boundaries and headers around one file part.
const multipartOverhead = 1 << 20

// BodyLimit is the request body ceiling for the HTTP server. It is fixed at
// startup, so it sits well above the runtime limits: raising max_file_size or
// max_zip_size through the settings API works up to this value, and the
// ingest path enforces the live limits itself.
func (c *AppConfig) BodyLimit() int {
	limit := c.Limits.MaxBodySize
	for _, l := range []int64{c.Limits.MaxFileSize, c.Limits.MaxZipSize} {
		if l+multipartOverhead > limit {
			limit = l + multipartOverhead
		}
	}
	return int(limit)
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost      string
	Port         string
	TimeZone     string
	IndexBackend string
	Database     DatabaseConfig
	MinIO        MinIOConfig
	Storage      StorageConfig
	OCR          OCRConfig
	Limits       LimitsConfig
}

// Location resolves TimeZone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Settings builds the initial runtime settings from the loaded configuration.
func (c *AppConfig) Settings() Settings {
	return Settings{
		StorageType:      c.Storage.Type,
		S3Endpoint:       c.MinIO.Endpoint,
		S3Bucket:         c.MinIO.Bucket,
		S3AccessKey:      c.MinIO.AccessKey,
		S3SecretKey:      c.MinIO.SecretKey,
		S3UseSSL:         c.MinIO.UseSSL,
		MaxFileSize:      c.Limits.MaxFileSize,
		MaxZipSize:       c.Limits.MaxZipSize,
		DefaultOCREngine: c.OCR.DefaultEngine,
	}
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:      getEnv("APP_HOST", "localhost:8080"),
		Port:         getEnv("PORT", "8080"), // default only for non-sensitive value
		TimeZone:     getEnv("APP_TIMEZONE", "UTC"),
		IndexBackend: getEnv("INDEX_BACKEND", "memory"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Storage: StorageConfig{
			Type:      getEnv("STORAGE_TYPE", StorageLocal),
			LocalRoot: getEnv("STORAGE_LOCAL_ROOT", "storage"),
		},
		OCR: OCRConfig{
			DefaultEngine:   getEnv("OCR_DEFAULT_ENGINE", "tesseract"),
			Workers:         getEnvInt("OCR_WORKERS", 4),
			Timeout:         getEnvDuration("OCR_TIMEOUT", 5*time.Minute),
			Languages:       getEnvList("OCR_LANGUAGES", []string{"eng"}),
			PDFRasterizer:   getEnv("OCR_PDF_RASTERIZER", "pdftoppm"),
			PDFDPI:          getEnvInt("OCR_PDF_DPI", 300),
			OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
			OllamaModel:     getEnv("OLLAMA_OCR_MODEL", "llava"),
			OllamaPrompt:    getEnv("OLLAMA_OCR_PROMPT", ""),
			ShutdownTimeout: getEnvDuration("OCR_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Limits: LimitsConfig{
			MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 10*1024*1024),
			MaxZipSize:  getEnvInt64("MAX_ZIP_SIZE", 50*1024*1024),
			MaxBodySize: getEnvInt64("HTTP_MAX_BODY_SIZE", 1<<30),
		},
	}
}

// envOr parses the variable key with parse, returning def when the variable
// is unset or malformed.
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnv(key, def string) string {
	return envOr(key, def, func(s string) (string, error) { return s, nil })
}

func getEnvBool(key string, def bool) bool { return envOr(key, def, strconv.ParseBool) }

func getEnvInt(key string, def int) int { return envOr(key, def, strconv.Atoi) }

func getEnvInt64(key string, def int64) int64 {
	return envOr(key, def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	return envOr(key, def, time.ParseDuration)
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
