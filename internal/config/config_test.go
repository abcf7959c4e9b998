package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", cfg.Attempts)
	}
	if cfg.RetryWait != time.Second {
		t.Errorf("expected 1s retry wait, got %v", cfg.RetryWait)
	}
	if cfg.BaseURL != "https://www.youtube.com/results" {
		t.Errorf("unexpected base url %s", cfg.BaseURL)
	}
	if cfg.Storage.Driver != DriverNone || cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tubescrape.yaml")
	content := `
attempts: 6
retry_wait: 250ms
fingerprint: firefox
user_agents:
  - UA/1
  - UA/2
storage:
  driver: sqlite
  dsn: /tmp/attempts.db
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TUBESCRAPE_ATTEMPTS", "2")
	t.Setenv("TUBESCRAPE_STORAGE_DSN", "/tmp/override.db")

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Attempts != 2 {
		t.Errorf("expected env to override attempts, got %d", cfg.Attempts)
	}
	if cfg.RetryWait != 250*time.Millisecond {
		t.Errorf("expected 250ms wait from file, got %v", cfg.RetryWait)
	}
	if cfg.Fingerprint != "firefox" || len(cfg.UserAgents) != 2 || cfg.UserAgents[1] != "UA/2" {
		t.Errorf("unexpected file values %+v", cfg)
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Storage.DSN != "/tmp/override.db" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Attempts:    4,
			RetryWait:   time.Second,
			Timeout:     time.Second,
			Fingerprint: "chrome",
			UAStrategy:  "random",
			Concurrency: 1,
			Storage:     StorageConfig{Driver: DriverNone},
			Log:         LogConfig{Level: "INFO", Format: "json"},
		}
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero attempts", func(c *Config) { c.Attempts = 0 }, "attempts"},
		{"negative wait", func(c *Config) { c.RetryWait = -time.Second }, "retry_wait"},
		{"zero wait", func(c *Config) { c.RetryWait = 0 }, "retry_wait must be positive"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"bad port", func(c *Config) { c.MetricsPort = 70000 }, "metrics_port"},
		{"bad profile", func(c *Config) { c.Fingerprint = "netscape" }, "unknown profile"},
		{"bad strategy", func(c *Config) { c.UAStrategy = "weighted" }, "unknown strategy"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "mysql" }, "storage.driver"},
		{"missing dsn", func(c *Config) { c.Storage.Driver = DriverJSON }, "storage.dsn"},
		{"missing csv dsn", func(c *Config) { c.Storage.Driver = DriverCSV }, "storage.dsn"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
