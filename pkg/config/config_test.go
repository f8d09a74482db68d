package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsOnly(t *testing.T) {
	// Point the default search path at an empty directory so a developer's
	// real config cannot leak into the test.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "filesystem", cfg.Source.Type)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
server:
  listen: ":9000"
  read_timeout: 5s
  conns_per_second: 100
  burst: 50
source:
  type: badger
  badger:
    path: /tmp/skiff-test
metrics:
  enabled: true
  port: 9191
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, uint(100), cfg.Server.ConnsPerSecond)
	assert.Equal(t, uint(50), cfg.Server.Burst)
	assert.Equal(t, "badger", cfg.Source.Type)
	assert.Equal(t, "/tmp/skiff-test", cfg.Source.Badger["path"])
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9191, cfg.Metrics.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: warn
`)

	t.Setenv("SKIFF_LOGGING_LEVEL", "ERROR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestLoadInvalidLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: loud
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "logging: [not a map")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadUnknownSourceType(t *testing.T) {
	path := writeConfig(t, `
source:
  type: carrier-pigeon
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, "/tmp/xdg/skiff/config.yaml", GetDefaultConfigPath())
}
