package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported storage backends.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendMinIO  = "minio"
	BackendGCS    = "gcs"
	BackendAzure  = "azure"
)

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	Port            string
	RouteBase       string
	BodyLimitBytes  int
	ReadTimeoutSec  int
	WriteTimeoutSec int
}

// StorageConfig selects the storage backend and the drop policy.
type StorageConfig struct {
	Backend     string
	AppRoot     string
	DropDirName string
	// MaxUploadBytes is the server-side size policy. Zero disables it.
	MaxUploadBytes int64
}

// DropDir returns the drop directory used by the local backend.
func (s StorageConfig) DropDir() string {
	return filepath.Join(s.AppRoot, s.DropDirName)
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// GCSConfig holds Google Cloud Storage settings. Credentials come from the
// environment (Application Default Credentials).
type GCSConfig struct {
	Bucket string
	Prefix string
}

// AzureConfig holds Azure Blob Storage settings.
type AzureConfig struct {
	AccountName string
	Container   string
	Prefix      string
}

// DatabaseConfig holds PostgreSQL settings for the optional upload journal.
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

// Enabled reports whether a journal database has been configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level    string
	Format   string
	TimeZone string
}

// Location resolves TimeZone, falling back to UTC when it is unknown.
func (l LogConfig) Location() *time.Location {
	loc, err := time.LoadLocation(l.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Server   ServerConfig
	Storage  StorageConfig
	MinIO    MinIOConfig
	GCS      GCSConfig
	Azure    AzureConfig
	Database DatabaseConfig
	Log      LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			RouteBase:       normalizeRouteBase(getEnv("ROUTE_BASE", "/api")),
			BodyLimitBytes:  getEnvInt("HTTP_BODY_LIMIT_BYTES", 1<<30),
			ReadTimeoutSec:  getEnvInt("HTTP_READ_TIMEOUT_SEC", 60),
			WriteTimeoutSec: getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 60),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(getEnv("STORAGE_BACKEND", BackendLocal)),
			AppRoot:        getEnv("APP_ROOT", workingDir()),
			DropDirName:    getEnv("DROP_DIR_NAME", "temp"),
			MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 0),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			Prefix:    getEnv("MINIO_PREFIX", "temp/"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket: getEnv("GCS_BUCKET", ""),
			Prefix: getEnv("GCS_PREFIX", "temp/"),
		},
		Azure: AzureConfig{
			AccountName: getEnv("AZURE_STORAGE_ACCOUNT", ""),
			Container:   getEnv("AZURE_STORAGE_CONTAINER", "filedrop"),
			Prefix:      getEnv("AZURE_STORAGE_PREFIX", "temp/"),
		},
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
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Format:   getEnv("LOG_FORMAT", "json"),
			TimeZone: getEnv("TIMEZONE", "UTC"),
		},
	}
}

// Validate rejects settings the server cannot start with. Backend specific
// requirements (credentials, buckets) are checked by the storage constructors.
func (c *AppConfig) Validate() error {
	switch c.Storage.Backend {
	case BackendLocal, BackendMemory, BackendMinIO, BackendGCS, BackendAzure:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendLocal && c.Storage.DropDirName == "" {
		return fmt.Errorf("DROP_DIR_NAME must not be empty")
	}
	if c.Storage.MaxUploadBytes < 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must not be negative")
	}
	if c.Server.RouteBase != "" && !strings.HasPrefix(c.Server.RouteBase, "/") {
		return fmt.Errorf("ROUTE_BASE must start with '/'")
	}
	if c.Server.BodyLimitBytes <= 0 {
		return fmt.Errorf("HTTP_BODY_LIMIT_BYTES must be positive")
	}
	return nil
}

// normalizeRouteBase trims a trailing slash so routes can be joined with "/upload/...".
// The root base "/" becomes the empty string.
func normalizeRouteBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	return strings.TrimRight(base, "/")
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}
