package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "MEMORY")
	t.Setenv("MAX_UPLOAD_BYTES", "2000000")
	t.Setenv("ROUTE_BASE", "/files/")
	t.Setenv("APP_ROOT", "/srv/drop")
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := Load()

	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, int64(2000000), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "/files", cfg.Server.RouteBase)
	assert.Equal(t, filepath.Join("/srv/drop", "temp"), cfg.Storage.DropDir())
	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORAGE_BACKEND", "MAX_UPLOAD_BYTES", "ROUTE_BASE", "APP_ROOT", "DB_HOST", "PORT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	wd, _ := os.Getwd()
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, int64(0), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "/api", cfg.Server.RouteBase)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, filepath.Join(wd, "temp"), cfg.Storage.DropDir())
	assert.False(t, cfg.Database.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *AppConfig) {}},
		{name: "root route base", mutate: func(c *AppConfig) { c.Server.RouteBase = "" }},
		{name: "unknown backend", mutate: func(c *AppConfig) { c.Storage.Backend = "ftp" }, wantErr: true},
		{name: "negative limit", mutate: func(c *AppConfig) { c.Storage.MaxUploadBytes = -1 }, wantErr: true},
		{name: "relative route base", mutate: func(c *AppConfig) { c.Server.RouteBase = "api" }, wantErr: true},
		{name: "empty drop dir", mutate: func(c *AppConfig) { c.Storage.DropDirName = "" }, wantErr: true},
		{name: "empty drop dir on object store", mutate: func(c *AppConfig) {
			c.Storage.Backend = BackendMinIO
			c.Storage.DropDirName = ""
		}},
		{name: "zero body limit", mutate: func(c *AppConfig) { c.Server.BodyLimitBytes = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeRouteBase(t *testing.T) {
	assert.Equal(t, "", normalizeRouteBase("/"))
	assert.Equal(t, "", normalizeRouteBase(" "))
	assert.Equal(t, "/api", normalizeRouteBase("/api//"))
	assert.Equal(t, "/v1/api", normalizeRouteBase("/v1/api"))
}

func TestLogLocation(t *testing.T) {
	assert.Equal(t, time.UTC, LogConfig{TimeZone: "Not/AZone"}.Location())
	assert.Equal(t, time.UTC, LogConfig{TimeZone: "UTC"}.Location())
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))
	assert.Equal(t, int64(123), getEnvInt64(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))
	assert.Equal(t, int64(10), getEnvInt64(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}
