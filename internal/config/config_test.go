package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Search.Limit)
	assert.Equal(t, 8090, cfg.API.Port)

	timeout, err := cfg.GetRequestTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestLoadFrom_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(BackendURLEnv, "")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv(BackendURLEnv, "")

	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte("[remote]\nbase_url = \"https://decks.example.com\"\n\n[search]\nlimit = 5\n"), 0o644)
	require.NoError(t, err)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://decks.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 5, cfg.Search.Limit)
	assert.Equal(t, "30s", cfg.Remote.RequestTimeout)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[remote]\nbase_url = \"https://file.example.com\"\n"), 0o644))

	t.Setenv(BackendURLEnv, " https://env.example.com ")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Remote.BaseURL)
}

func TestLoadFrom_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[remote\n"), 0o644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(BackendURLEnv, "")

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.Search.Limit = 42
	cfg.Cache.Enabled = false

	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Search.Limit)
	assert.False(t, loaded.Cache.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.Remote.BaseURL = "/api" }},
		{"bad timeout", func(c *Config) { c.Remote.RequestTimeout = "soon" }},
		{"bad rate interval", func(c *Config) { c.Remote.RateInterval = "fast" }},
		{"negative retries", func(c *Config) { c.Remote.MaxRetries = -1 }},
		{"zero search limit", func(c *Config) { c.Search.Limit = 0 }},
		{"bad port", func(c *Config) { c.API.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Origins = "http://localhost:3000, ,http://127.0.0.1:3000"

	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.AllowedOrigins())
}
