// Package config handles reading and writing .sxconsole/config.yaml.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for .sxconsole/config.yaml.
type Config struct {
	Version   int             `yaml:"version"`
	API       APIConfig       `yaml:"api"`
	Session   SessionConfig   `yaml:"session"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// APIConfig describes how to reach the companion backend.
type APIConfig struct {
	BaseURL           string  `yaml:"base_url"`
	AuthToken         string  `yaml:"auth_token,omitempty"`
	ClientUI          string  `yaml:"client_ui"`
	TimeoutMs         int     `yaml:"timeout_ms"`
	Retries           int     `yaml:"retries"` // total attempts per request
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// SessionConfig controls hydration, the local cache and admin expiry.
type SessionConfig struct {
	ResumeTurns        int    `yaml:"resume_turns"`
	CacheLimit         int    `yaml:"cache_limit"`
	AdminIdleTimeoutMs int    `yaml:"admin_idle_timeout_ms"`
	ExitCommand        string `yaml:"exit_command"`
	StateDB            string `yaml:"state_db"` // relative to .sxconsole/
}

// TelemetryConfig controls the live sentiment/threat stream.
type TelemetryConfig struct {
	Path             string `yaml:"path"`
	DebounceMs       int    `yaml:"debounce_ms"`
	WindowSize       int    `yaml:"window_size"`
	MaxReconnects    int    `yaml:"max_reconnects"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int    `yaml:"max_backoff_ms"`
}

// DashboardConfig controls the health poller.
type DashboardConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms"`
}

// Environment variables that override the file.
const (
	EnvAPIBase   = "SX_API_BASE"
	EnvAuthToken = "SX_AUTH_TOKEN"
	EnvClientUI  = "SX_CLIENT_UI"
)

// Dir is the per-project state directory, relative to the project root.
const Dir = ".sxconsole"

const configFile = "config.yaml"

// ReadConfig reads .sxconsole/config.yaml from the given directory.
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, Dir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}

	// Start from defaults so that older files missing new keys stay usable.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}

	return cfg, nil
}

// WriteConfig writes cfg to .sxconsole/config.yaml in the given directory.
// Creates the .sxconsole/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, Dir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "writing config")
	}

	return nil
}

// Load reads the config in dir, falling back to defaults when the file is
// missing, and applies environment overrides.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overrides API settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIBase); ok && strings.TrimSpace(v) != "" {
		c.API.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAuthToken); ok && strings.TrimSpace(v) != "" {
		c.API.AuthToken = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvClientUI); ok && strings.TrimSpace(v) != "" {
		c.API.ClientUI = strings.TrimSpace(v)
	}
}

// StateDBPath returns the absolute path of the local cache database.
func (c *Config) StateDBPath(dir string) string {
	name := c.Session.StateDB
	if name == "" {
		name = "state.db"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, Dir, name)
}

// Timeout returns the per-attempt request timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

// AdminIdleTimeout returns the admin sub-session idle expiry.
func (s SessionConfig) AdminIdleTimeout() time.Duration {
	return time.Duration(s.AdminIdleTimeoutMs) * time.Millisecond
}

// Debounce returns the telemetry coalescing interval.
func (t TelemetryConfig) Debounce() time.Duration {
	return time.Duration(t.DebounceMs) * time.Millisecond
}

// InitialBackoff returns the first reconnect delay.
func (t TelemetryConfig) InitialBackoff() time.Duration {
	return time.Duration(t.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the reconnect delay cap.
func (t TelemetryConfig) MaxBackoff() time.Duration {
	return time.Duration(t.MaxBackoffMs) * time.Millisecond
}

// PollInterval returns the health polling interval.
func (d DashboardConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalMs) * time.Millisecond
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		API: APIConfig{
			BaseURL:           "http://localhost:8000",
			ClientUI:          "sxconsole",
			TimeoutMs:         5000,
			Retries:           3,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Session: SessionConfig{
			ResumeTurns:        40,
			CacheLimit:         80,
			AdminIdleTimeoutMs: 15000,
			ExitCommand:        "admin:exit",
			StateDB:            "state.db",
		},
		Telemetry: TelemetryConfig{
			Path:             "/api/logs",
			DebounceMs:       500,
			WindowSize:       20,
			MaxReconnects:    8,
			InitialBackoffMs: 500,
			MaxBackoffMs:     30000,
		},
		Dashboard: DashboardConfig{
			PollIntervalMs: 5000,
		},
	}
}
