package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultCacheCapacity, cfg.Cache.DefaultCapacity)
	assert.Equal(t, "./data", cfg.Store.DataDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pathq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  default_capacity: 50
  capacities:
    forms: 10
store:
  data_dir: /tmp/pathq
logging:
  level: debug
  pretty: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Cache.DefaultCapacity)
	assert.Equal(t, 10, cfg.Cache.Capacities["forms"])
	assert.Equal(t, "/tmp/pathq", cfg.Store.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PATHQ_CACHE_CAPACITY", "77")
	t.Setenv("PATHQ_CACHE_CAPACITIES", "main=5, forms=9")
	t.Setenv("PATHQ_DATA_DIR", "/srv/pathq")
	t.Setenv("PATHQ_LOG_LEVEL", "warn")
	t.Setenv("PATHQ_LOG_PRETTY", "yes")

	cfg := LoadFromEnv()
	assert.Equal(t, 77, cfg.Cache.DefaultCapacity)
	assert.Equal(t, 5, cfg.Cache.Capacities["main"])
	assert.Equal(t, 9, cfg.Cache.Capacities["forms"])
	assert.Equal(t, "/srv/pathq", cfg.Store.DataDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pathq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  default_capacity: 50\n"), 0o644))
	t.Setenv("PATHQ_CACHE_CAPACITY", "99")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.Cache.DefaultCapacity)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Cache.DefaultCapacity = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Cache.Capacities = map[string]int{"x": -1}
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Logging.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Store.DataDir = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Store.DataDir = ""
	cfg.Store.InMemory = true
	assert.NoError(t, cfg.Validate())
}
