package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigYAMLRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://api.internal:9000"
	cfg.Session.AdminIdleTimeoutMs = 20000

	if err := WriteConfig(tmpDir, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	loaded, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if loaded.API.BaseURL != "http://api.internal:9000" {
		t.Errorf("API.BaseURL: got %q, want %q", loaded.API.BaseURL, "http://api.internal:9000")
	}
	if loaded.Session.AdminIdleTimeout() != 20*time.Second {
		t.Errorf("AdminIdleTimeout: got %v, want 20s", loaded.Session.AdminIdleTimeout())
	}
}

func TestDefaultConfigMatchesClientContract(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Session.ResumeTurns != 40 {
		t.Errorf("ResumeTurns: got %d, want 40", cfg.Session.ResumeTurns)
	}
	if cfg.Session.CacheLimit != 80 {
		t.Errorf("CacheLimit: got %d, want 80", cfg.Session.CacheLimit)
	}
	if cfg.Session.AdminIdleTimeout() != 15*time.Second {
		t.Errorf("AdminIdleTimeout: got %v, want 15s", cfg.Session.AdminIdleTimeout())
	}
	if cfg.Telemetry.WindowSize != 20 {
		t.Errorf("WindowSize: got %d, want 20", cfg.Telemetry.WindowSize)
	}
	if cfg.Telemetry.Debounce() != 500*time.Millisecond {
		t.Errorf("Debounce: got %v, want 500ms", cfg.Telemetry.Debounce())
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	// Simulate an older config file that only sets the API block.
	tmpDir := t.TempDir()
	oldConfig := `version: 1
api:
  base_url: http://10.0.0.5:8000
  retries: 5
`
	configPath := filepath.Join(tmpDir, Dir)
	if err := os.MkdirAll(configPath, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configPath, "config.yaml"), []byte(oldConfig), 0644); err != nil {
		t.Fatalf("failed to write old config: %v", err)
	}

	cfg, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed on old config: %v", err)
	}
	if cfg.API.Retries != 5 {
		t.Errorf("Retries: got %d, want 5", cfg.API.Retries)
	}
	if cfg.Telemetry.Path != "/api/logs" {
		t.Errorf("Telemetry.Path: got %q, want default", cfg.Telemetry.Path)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Version: got %d, want 1", cfg.Version)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAPIBase:   " http://override:1 ",
		EnvAuthToken: "secret",
		EnvClientUI:  "",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	if cfg.API.BaseURL != "http://override:1" {
		t.Errorf("BaseURL: got %q", cfg.API.BaseURL)
	}
	if cfg.API.AuthToken != "secret" {
		t.Errorf("AuthToken: got %q", cfg.API.AuthToken)
	}
	if cfg.API.ClientUI != "sxconsole" {
		t.Errorf("empty env value must not override ClientUI, got %q", cfg.API.ClientUI)
	}
}

func TestStateDBPath(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.StateDBPath("/work")
	want := filepath.Join("/work", Dir, "state.db")
	if got != want {
		t.Errorf("StateDBPath: got %q, want %q", got, want)
	}

	cfg.Session.StateDB = "/var/lib/sx.db"
	if got := cfg.StateDBPath("/work"); got != "/var/lib/sx.db" {
		t.Errorf("absolute StateDB: got %q", got)
	}
}
