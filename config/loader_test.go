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
	cfg, err := NewLoader().WithEnvPrefix("FLOWGRID_TEST_DEFAULTS").Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.Engine.HistorySize)
	assert.Equal(t, "openai", cfg.Providers.Default)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Providers.OpenAI.Enabled())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowgrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
engine:
  history_size: 5
  http_timeout: 10s
providers:
  default: anthropic
  anthropic:
    api_key: sk-test
    rps: 2.5
log:
  level: debug
  format: console
`), 0o600))

	cfg, err := NewLoader().
		WithConfigPath(path).
		WithEnvPrefix("FLOWGRID_TEST_FILE").
		Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Engine.HistorySize)
	assert.Equal(t, 10*time.Second, cfg.Engine.HTTPTimeout)
	assert.Equal(t, "anthropic", cfg.Providers.Default)
	assert.True(t, cfg.Providers.Anthropic.Enabled())
	assert.InDelta(t, 2.5, cfg.Providers.Anthropic.RPS, 1e-9)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowgrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))

	t.Setenv("FLOWGRID_TEST_ENV_SERVER_ADDR", ":7070")
	t.Setenv("FLOWGRID_TEST_ENV_ENGINE_HTTP_TIMEOUT", "45s")
	t.Setenv("FLOWGRID_TEST_ENV_PROVIDERS_OPENAI_API_KEY", "sk-env")

	cfg, err := NewLoader().
		WithConfigPath(path).
		WithEnvPrefix("FLOWGRID_TEST_ENV").
		Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.Engine.HTTPTimeout)
	assert.Equal(t, "sk-env", cfg.Providers.OpenAI.APIKey)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).
		WithEnvPrefix("FLOWGRID_TEST_MISSING").
		Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_RejectsBadLevel(t *testing.T) {
	t.Setenv("FLOWGRID_TEST_BAD_LOG_LEVEL", "shout")

	_, err := NewLoader().WithEnvPrefix("FLOWGRID_TEST_BAD").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestLoad_CustomValidator(t *testing.T) {
	_, err := NewLoader().
		WithEnvPrefix("FLOWGRID_TEST_VALIDATOR").
		WithValidator(func(c *Config) error {
			return os.ErrInvalid
		}).
		Load()
	require.Error(t, err)
}
