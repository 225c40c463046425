package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name     string        `env:"TEST_NAME" yaml:"name" default:"assistant"`
	Port     int           `env:"TEST_PORT" yaml:"port" default:"8080"`
	Debug    bool          `env:"TEST_DEBUG" yaml:"debug" default:"false"`
	Timeout  time.Duration `env:"TEST_TIMEOUT" yaml:"timeout" default:"30s"`
	Ratio    float64       `env:"TEST_RATIO" yaml:"ratio" default:"0.2"`
	Stops    []string      `env:"TEST_STOPS" yaml:"stops" default:"a,b"`
	Required string        `env:"TEST_REQUIRED" yaml:"required" required:"true"`
}

type nestedConfig struct {
	Inner testConfig `yaml:"inner"`
	Extra string     `env:"TEST_EXTRA" yaml:"extra" default:"x"`
}

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "set")

	var cfg testConfig
	require.NoError(t, LoadFromEnv(&cfg))

	assert.Equal(t, "assistant", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.InDelta(t, 0.2, cfg.Ratio, 1e-9)
	assert.Equal(t, []string{"a", "b"}, cfg.Stops)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "set")
	t.Setenv("TEST_NAME", "other")
	t.Setenv("TEST_PORT", "9999")
	t.Setenv("TEST_DEBUG", "true")
	t.Setenv("TEST_TIMEOUT", "5s")
	t.Setenv("TEST_STOPS", "x, y ,z")

	var cfg testConfig
	require.NoError(t, LoadFromEnv(&cfg))

	assert.Equal(t, "other", cfg.Name)
	assert.Equal(t, 9999, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"x", "y", "z"}, cfg.Stops)
}

func TestLoadFromEnvRequiredMissing(t *testing.T) {
	os.Unsetenv("TEST_REQUIRED")

	var cfg testConfig
	err := LoadFromEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_REQUIRED")
	// Config must be reset on failure
	assert.Empty(t, cfg.Name)
}

func TestLoadFromEnvNested(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "set")

	var cfg nestedConfig
	require.NoError(t, LoadFromEnv(&cfg))

	assert.Equal(t, "assistant", cfg.Inner.Name)
	assert.Equal(t, "x", cfg.Extra)
}

func TestLoadYAMLFileThenEnv(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "set")
	t.Setenv("TEST_PORT", "7070")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: from-file\nport: 1234\n"), 0o600))

	var cfg testConfig
	require.NoError(t, Load(&cfg, path, false))

	// env beats file, file beats default
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "from-file", cfg.Name)
}

func TestLoadMissingFileAllowed(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "set")

	var cfg testConfig
	require.NoError(t, Load(&cfg, "/does/not/exist.yaml", true))
	assert.Equal(t, "assistant", cfg.Name)
}

func TestLoadMissingFileRejected(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg, "/does/not/exist.yaml", false)
	require.Error(t, err)
}

type validatedConfig struct {
	Port int `env:"TEST_VPORT" yaml:"port" default:"70000"`
}

func (c validatedConfig) Validate() error {
	if c.Port > 65535 {
		return assert.AnError
	}
	return nil
}

func TestLoadRunsValidator(t *testing.T) {
	var cfg validatedConfig
	err := LoadFromEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
