package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MAX_UPLOAD_SIZE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("SIGNED_URL_EXPIRES", "")

	cfg := Load()

	assert.Equal(t, int64(10_000_000), cfg.MaxUploadSize)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, time.Hour, cfg.SignedURLExpiry)
	assert.Equal(t, DriverMinio, cfg.StorageDriver)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_UPLOAD_SIZE", "2 MiB")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,,")
	t.Setenv("SIGNED_URL_EXPIRES", "120")
	t.Setenv("RECONCILE_INTERVAL", "15m")
	t.Setenv("APP_ENV", "production")

	cfg := Load()

	assert.Equal(t, int64(2*1024*1024), cfg.MaxUploadSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Minute, cfg.SignedURLExpiry)
	assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvAsBytesRejectsGarbage(t *testing.T) {
	t.Setenv("SOME_SIZE", "lots")
	assert.Equal(t, int64(42), getEnvAsBytes("SOME_SIZE", 42))
}
