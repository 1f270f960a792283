package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// BackendURLEnv overrides Remote.BaseURL when set.
const BackendURLEnv = "COMMANDER_BACKEND_URL"

// Config represents the application configuration.
type Config struct {
	// Remote deck/catalog service configuration
	Remote RemoteConfig `toml:"remote"`

	// Catalog search configuration
	Search SearchConfig `toml:"search"`

	// Snapshot cache configuration
	Cache CacheConfig `toml:"cache"`

	// Local presentation bridge configuration
	API APIConfig `toml:"api"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// RemoteConfig contains settings for the remote service client.
type RemoteConfig struct {
	BaseURL        string `toml:"base_url"`        // Fixed prefix for every call
	RequestTimeout string `toml:"request_timeout"` // Per-request timeout (e.g., "30s")
	MaxRetries     int    `toml:"max_retries"`     // Retries for safe requests
	RateInterval   string `toml:"rate_interval"`   // Minimum spacing between requests
	UserAgent      string `toml:"user_agent"`      // User-Agent header
}

// SearchConfig contains catalog search settings.
type SearchConfig struct {
	Limit int `toml:"limit"` // Max results per query
}

// CacheConfig contains snapshot cache settings.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"` // Persist authoritative deck snapshots
	Path    string `toml:"path"`    // SQLite file (empty = ~/.mtga-commander/snapshots.db)
}

// APIConfig contains settings for the local presentation bridge.
type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	Origins string `toml:"origins"` // Comma separated CORS origins
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Enable debug logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:        "http://localhost:8001",
			RequestTimeout: "30s",
			MaxRetries:     3,
			RateInterval:   "100ms",
			UserAgent:      "MTGCommander/1.0",
		},
		Search: SearchConfig{
			Limit: 20,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "",
		},
		API: APIConfig{
			Enabled: true,
			Port:    8090,
			Origins: "*",
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// Dir returns the configuration directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".mtga-commander")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return configDir, nil
}

// configPath returns the path to the configuration file.
func configPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the default location.
// Returns default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from path and applies environment overrides.
// Missing fields keep their default values.
func LoadFrom(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(BackendURLEnv)); v != "" {
		c.Remote.BaseURL = v
	}
}

// Save saves the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid remote base url %q", c.Remote.BaseURL)
	}

	if _, err := time.ParseDuration(c.Remote.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request timeout %q: %w", c.Remote.RequestTimeout, err)
	}

	if _, err := time.ParseDuration(c.Remote.RateInterval); err != nil {
		return fmt.Errorf("invalid rate interval %q: %w", c.Remote.RateInterval, err)
	}

	if c.Remote.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative: %d", c.Remote.MaxRetries)
	}

	if c.Search.Limit <= 0 {
		return fmt.Errorf("search limit must be positive: %d", c.Search.Limit)
	}

	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("invalid api port: %d", c.API.Port)
	}

	return nil
}

// GetRequestTimeout returns the remote request timeout as a duration.
func (c *Config) GetRequestTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Remote.RequestTimeout)
}

// GetRateInterval returns the remote rate interval as a duration.
func (c *Config) GetRateInterval() (time.Duration, error) {
	return time.ParseDuration(c.Remote.RateInterval)
}

// CachePath returns the snapshot cache path, defaulting under the config directory.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "snapshots.db"), nil
}

// AllowedOrigins splits API.Origins into a list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.API.Origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
