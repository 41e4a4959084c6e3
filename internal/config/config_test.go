package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, "https://login.salesforce.com", cfg.Directory.LoginURL)
	assert.InDelta(t, 5, cfg.Directory.RateLimitRPS, 0.001)
	assert.InDelta(t, 10, cfg.Notify.RateLimitRPS, 0.001)
	assert.Equal(t, 3, cfg.Notify.MaxAttempts)
	assert.Equal(t, 5, cfg.Bulk.MaxConcurrent)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: sqlite
  database_url: sourcing.db
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://app.example.com
bulk:
  max_concurrent: 12
notify:
  webhook_url: https://hooks.example.com/sourcing
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sourcing.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 12, cfg.Bulk.MaxConcurrent)
	assert.Equal(t, "https://hooks.example.com/sourcing", cfg.Notify.WebhookURL)
}

func TestLoadFromEnv(t *testing.T) {
	chTempDir(t)

	t.Setenv("SOURCING_STORE_DRIVER", "sqlite")
	t.Setenv("SOURCING_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	err := InitLogger(LogConfig{Level: "not-a-level", Format: "json"})
	assert.Error(t, err)
}
