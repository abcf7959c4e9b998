package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/tubescrape/internal/bypass"
	"github.com/FranksOps/tubescrape/internal/fingerprint"
	"github.com/FranksOps/tubescrape/internal/metrics"
	"github.com/FranksOps/tubescrape/pkg/httpclient"
	"github.com/FranksOps/tubescrape/pkg/proxy"
	"github.com/FranksOps/tubescrape/pkg/useragent"
)

var (
	// ErrChallenged means the site answered with a consent, captcha or throttle page.
	ErrChallenged = errors.New("scraper: challenge page detected")
	// ErrDisallowed means robots.txt forbids the target path.
	ErrDisallowed = errors.New("scraper: disallowed by robots.txt")
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	// AcceptLanguage pins the page language so renderer text is predictable.
	AcceptLanguage string
	// RespectRobots gates every fetch on the host's robots.txt.
	RespectRobots bool
	// RobotsAgent is the agent name matched against robots.txt groups.
	RobotsAgent string
	Detectors   []bypass.Detector
	Logger      *slog.Logger
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool
}

// Page is a fetched document plus what we learned about the response.
type Page struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Header       http.Header
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string
}

// Fetcher performs single URL fetches using the configured evasion strategies.
// One Fetcher is shared by all searches; it is safe for concurrent use.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	robots *RobotsTxtAuditor
	logger *slog.Logger
}

// NewFetcher initializes a new Fetcher with the given configuration.
// Holding a single client keeps the connection pool (and cookie jar, if
// configured) alive across fetches.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil, useragent.Sequential)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = "en-US,en;q=0.9"
	}
	if cfg.RobotsAgent == "" {
		cfg.RobotsAgent = "*"
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The proxy is chosen per request and carried in the request context.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		if req.URL.Hostname() == "127.0.0.1" || req.URL.Hostname() == "localhost" {
			return nil, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{
		Proxy:              proxyFunc,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: create client: %w", err)
	}

	f := &Fetcher{
		config: cfg,
		client: client,
		logger: cfg.Logger,
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsTxtAuditor(f, cfg.Logger)
	}
	return f, nil
}

// Fetch GETs targetURL. The returned Page is never nil and carries whatever was
// observed, even when err is set: transport failures, non-2xx statuses, robots
// disallows and detected challenge pages are all errors.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, targetURL, f.config.RobotsAgent)
		if err != nil {
			return &Page{URL: targetURL}, err
		}
		if !allowed {
			return &Page{URL: targetURL}, fmt.Errorf("%w: %s", ErrDisallowed, targetURL)
		}
	}

	page, err := f.get(ctx, targetURL)

	if page.StatusCode > 0 {
		page.DetectedBot, page.DetectionSrc = bypass.Analyze(&httpclient.Response{
			StatusCode: page.StatusCode,
			Header:     page.Header,
			Body:       page.Body,
			URL:        page.FinalURL,
		}, f.config.Detectors)
	}
	metrics.RecordFetch(page.StatusCode, page.DetectionSrc, len(page.Body), page.Duration)

	if page.DetectedBot {
		return page, fmt.Errorf("%w: %s (status %d)", ErrChallenged, page.DetectionSrc, page.StatusCode)
	}
	if err != nil {
		return page, fmt.Errorf("scraper: fetch %s: %w", targetURL, err)
	}
	return page, nil
}

// get performs the raw request without robots or challenge handling.
func (f *Fetcher) get(ctx context.Context, targetURL string) (*Page, error) {
	page := &Page{URL: targetURL}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		if activeProxy = f.config.ProxyPool.Next(); activeProxy != nil {
			ctx = context.WithValue(ctx, proxyKey, activeProxy)
		}
	}

	header := http.Header{}
	header.Set("User-Agent", f.config.UAPool.Next())
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	header.Set("Accept-Language", f.config.AcceptLanguage)

	f.logger.Debug("fetching", "url", targetURL, "proxy", activeProxy)

	start := time.Now()
	resp, err := f.client.Get(ctx, targetURL, header)
	page.Duration = time.Since(start)

	var statusErr *httpclient.StatusError
	if activeProxy != nil {
		reached := err == nil || errors.As(err, &statusErr) || errors.Is(err, httpclient.ErrBodyTooLarge)
		if rerr := f.config.ProxyPool.Report(activeProxy, reached); rerr != nil {
			f.logger.Warn("proxy report failed", "proxy", activeProxy, "err", rerr)
		}
		if !reached {
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
	}

	if resp != nil {
		page.FinalURL = resp.URL
		page.StatusCode = resp.StatusCode
		page.Header = resp.Header
		page.Body = resp.Body
	}
	return page, err
}
