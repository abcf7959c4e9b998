package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/tubescrape/internal/config"
	"github.com/FranksOps/tubescrape/internal/fingerprint"
	"github.com/FranksOps/tubescrape/internal/metrics"
	"github.com/FranksOps/tubescrape/internal/scraper"
	"github.com/FranksOps/tubescrape/internal/storage"
	"github.com/FranksOps/tubescrape/internal/storage/csvbackend"
	"github.com/FranksOps/tubescrape/internal/storage/jsonbackend"
	"github.com/FranksOps/tubescrape/internal/storage/postgres"
	"github.com/FranksOps/tubescrape/internal/storage/sqlite"
	"github.com/FranksOps/tubescrape/internal/youtube"
	"github.com/FranksOps/tubescrape/pkg/proxy"
	"github.com/FranksOps/tubescrape/pkg/retry"
	"github.com/FranksOps/tubescrape/pkg/useragent"
)

// app holds what PersistentPreRunE builds for the subcommands.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	backend    storage.Backend
	metrics    *metrics.Server
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "tubescrape",
		Short:         "Scrape video results from YouTube search pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (yaml, toml or json)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
	pf.String("storage-driver", config.DriverNone, "attempt audit log: none, sqlite, postgres, json, csv")
	pf.String("storage-dsn", "", "sqlite path, postgres DSN, json or csv file")
	pf.String("base-url", youtube.DefaultBaseURL, "search endpoint")
	pf.Int("attempts", retry.DefaultAttempts, "failed attempts allowed per search")
	pf.Duration("retry-wait", retry.DefaultWait, "fixed wait after a failed attempt (must be positive)")
	pf.Duration("timeout", 30*time.Second, "per-request timeout")
	pf.String("fingerprint", string(fingerprint.ProfileChrome), "TLS fingerprint: chrome, firefox, safari, go, random")
	pf.StringSlice("user-agent", nil, "User-Agent to rotate through (repeatable)")
	pf.String("ua-strategy", "sequential", "User-Agent rotation: sequential or random")
	pf.String("proxies", "", "file with one proxy URL per line")
	pf.Bool("respect-robots", false, "skip fetches disallowed by robots.txt")

	for key, flag := range map[string]string{
		"log.level":      "log-level",
		"log.format":     "log-format",
		"metrics_port":   "metrics-port",
		"storage.driver": "storage-driver",
		"storage.dsn":    "storage-dsn",
		"base_url":       "base-url",
		"attempts":       "attempts",
		"retry_wait":     "retry-wait",
		"timeout":        "timeout",
		"fingerprint":    "fingerprint",
		"user_agents":    "user-agent",
		"ua_strategy":    "ua-strategy",
		"proxies_file":   "proxies",
		"respect_robots": "respect-robots",
	} {
		// only an explicitly set flag overrides file and env values
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		newSearchCmd(a),
		newBatchCmd(a),
		newWatchCmd(a),
		newReportCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context, logOut io.Writer) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(logOut, cfg.Log)
	slog.SetDefault(a.logger)

	a.backend, err = openBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	if cfg.MetricsPort > 0 {
		a.metrics = metrics.Start(cfg.MetricsPort, a.logger)
		a.logger.Info("serving metrics", "port", cfg.MetricsPort)
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.metrics != nil {
		if err := a.metrics.Stop(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("metrics server shutdown", "err", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			return fmt.Errorf("close storage: %w", err)
		}
	}
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func openBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		b, err = sqlite.New(cfg.DSN)
	case config.DriverPostgres:
		b, err = postgres.New(ctx, cfg.DSN)
	case config.DriverJSON:
		b, err = jsonbackend.New(cfg.DSN)
	case config.DriverCSV:
		b, err = csvbackend.New(cfg.DSN)
	default:
		return storage.Nop{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Driver, err)
	}
	return b, nil
}

// newScraper wires the fetch stack from configuration.
func (a *app) newScraper() (*youtube.Scraper, error) {
	cfg := a.cfg

	strategy, err := useragent.ParseStrategy(cfg.UAStrategy)
	if err != nil {
		return nil, err
	}
	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if cfg.ProxiesFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.LoadFile(cfg.ProxiesFile); err != nil {
			return nil, err
		}
		a.logger.Info("loaded proxies", "count", proxies.Len())
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:       cfg.Timeout,
		UseCookieJar:  true,
		ProxyPool:     proxies,
		UAPool:        useragent.NewPool(cfg.UserAgents, strategy),
		Fingerprint:   profile,
		RespectRobots: cfg.RespectRobots,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, err
	}

	return youtube.New(youtube.Config{
		BaseURL:   cfg.BaseURL,
		Attempts:  cfg.Attempts,
		RetryWait: cfg.RetryWait,
		Fetcher:   fetcher,
		Backend:   a.backend,
		Logger:    a.logger,
	})
}
