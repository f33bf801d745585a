package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Platform.URL)
	assert.Equal(t, 30*time.Second, cfg.Platform.Timeout)
	assert.Equal(t, 2, cfg.Platform.Retries)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
	assert.Equal(t, 1000, cfg.Sync.PageSize)
	assert.Equal(t, 31, cfg.Sync.DuplicateErrorCode)
	assert.Equal(t, 10, cfg.Resolver.PageSize)
	assert.Equal(t, "./backup", cfg.Backup.Dir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Database.Driver)

	assert.Error(t, cfg.ValidatePlatform())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tb.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
platform:
  url: https://tb.example.com
  username: admin@acme.io
  password: secret
  timeout: 5s
sync:
  concurrency: 3
  duplicate_error_code: 99
`), 0o644))
	t.Setenv("SYNC_PAGE_SIZE", "50")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "https://tb.example.com", cfg.Platform.URL)
	assert.Equal(t, 5*time.Second, cfg.Platform.Timeout)
	assert.Equal(t, 3, cfg.Sync.Concurrency)
	assert.Equal(t, 99, cfg.Sync.DuplicateErrorCode)
	assert.Equal(t, 50, cfg.Sync.PageSize)
	assert.NoError(t, cfg.ValidatePlatform())
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	t.Setenv("SYNC_CONCURRENCY", "0")
	_, err := Load("")
	assert.ErrorContains(t, err, "sync.concurrency")

	t.Setenv("SYNC_CONCURRENCY", "4")
	t.Setenv("PLATFORM_URL", "not a url")
	_, err = Load("")
	assert.ErrorContains(t, err, "platform.url")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidatePlatform_Token(t *testing.T) {
	var c Config
	c.Platform.Token = "jwt"
	assert.NoError(t, c.ValidatePlatform())
}
