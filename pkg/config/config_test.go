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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.Lock.DefaultTimeout)
	assert.True(t, cfg.Lock.CollectionLocking)
	assert.True(t, cfg.Lock.DocumentLocking)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `logging:
  level: DEBUG
  format: json
  output: stdout
metrics:
  enabled: false
  port: 9300
lock:
  default_timeout: 250ms
  collection_locking: false
  document_locking: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9300, cfg.Metrics.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Lock.DefaultTimeout)
	assert.False(t, cfg.Lock.CollectionLocking)
	assert.True(t, cfg.Lock.DocumentLocking)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STRATUM_LOGGING_LEVEL", "ERROR")
	t.Setenv("STRATUM_LOCK_DEFAULT_TIMEOUT", "2s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ERROR", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.Lock.DefaultTimeout)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `logging:
  level: LOUD
  format: text
  output: stderr
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoad_InvalidTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `lock:
  default_timeout: -1s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	require.NoError(t, WriteSample(path, false))

	// Sample must round-trip through Load.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Lock.DefaultTimeout, cfg.Lock.DefaultTimeout)

	// A second write without force refuses to overwrite.
	assert.Error(t, WriteSample(path, false))
	assert.NoError(t, WriteSample(path, true))
}
