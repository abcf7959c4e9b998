// Package config loads tubescrape settings from defaults, an optional config
// file, TUBESCRAPE_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/tubescrape/internal/fingerprint"
	"github.com/FranksOps/tubescrape/internal/youtube"
	"github.com/FranksOps/tubescrape/pkg/retry"
	"github.com/FranksOps/tubescrape/pkg/useragent"
)

// EnvPrefix is prepended to every environment override, e.g. TUBESCRAPE_STORAGE_DSN.
const EnvPrefix = "TUBESCRAPE"

// Storage drivers accepted by storage.driver.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverJSON     = "json"
	DriverCSV      = "csv"
)

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the fully resolved configuration.
type Config struct {
	BaseURL       string        `mapstructure:"base_url"`
	Attempts      int           `mapstructure:"attempts"`
	RetryWait     time.Duration `mapstructure:"retry_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Fingerprint   string        `mapstructure:"fingerprint"`
	UserAgents    []string      `mapstructure:"user_agents"`
	UAStrategy    string        `mapstructure:"ua_strategy"`
	ProxiesFile   string        `mapstructure:"proxies_file"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	Concurrency   int           `mapstructure:"concurrency"`
	MetricsPort   int           `mapstructure:"metrics_port"`
	Storage       StorageConfig `mapstructure:"storage"`
	Log           LogConfig     `mapstructure:"log"`
}

// New returns a viper instance with every key defaulted and environment
// overrides enabled. Flags are bound onto it by the caller.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("base_url", youtube.DefaultBaseURL)
	v.SetDefault("attempts", retry.DefaultAttempts)
	v.SetDefault("retry_wait", retry.DefaultWait)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("fingerprint", string(fingerprint.ProfileChrome))
	v.SetDefault("user_agents", []string{})
	v.SetDefault("ua_strategy", "sequential")
	v.SetDefault("proxies_file", "")
	v.SetDefault("respect_robots", false)
	v.SetDefault("concurrency", 4)
	v.SetDefault("metrics_port", 0)
	v.SetDefault("storage.driver", DriverNone)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the optional config file at path into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component could run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Attempts < 1 {
		errs = append(errs, fmt.Errorf("attempts must be at least 1, got %d", c.Attempts))
	}
	// retry.New reads a zero wait as "use the default"
	if c.RetryWait <= 0 {
		errs = append(errs, fmt.Errorf("retry_wait must be positive, got %s", c.RetryWait))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics_port out of range: %d", c.MetricsPort))
	}
	if _, err := fingerprint.ParseProfile(c.Fingerprint); err != nil {
		errs = append(errs, err)
	}
	if _, err := useragent.ParseStrategy(c.UAStrategy); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Driver {
	case DriverNone:
	case DriverSQLite, DriverPostgres, DriverJSON, DriverCSV:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
