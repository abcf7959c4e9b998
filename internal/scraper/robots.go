package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsTxtAuditor fetches and caches robots.txt per host. A missing or
// unreadable robots.txt allows everything. Only answers from the host are
// cached; a failed fetch is tried again next time.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
}

// NewRobotsTxtAuditor creates a new instance.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether targetURL may be fetched by userAgent.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("scraper: invalid url: %w", err)
	}

	data := r.load(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true, nil
	}
	return data.FindGroup(userAgent).Test(u.Path), nil
}

func (r *RobotsTxtAuditor) load(ctx context.Context, origin string) *robotstxt.RobotsData {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache[origin]; ok {
		return data
	}

	page, err := r.fetcher.get(ctx, origin+"/robots.txt")
	if page.StatusCode == 0 {
		// no answer from the host; retry on the next call
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "origin", origin, "err", err)
		return nil
	}

	var data *robotstxt.RobotsData
	if page.StatusCode >= 400 {
		// robotstxt maps 4xx to allow-all and 5xx to disallow-all
		data, err = robotstxt.FromStatusAndBytes(page.StatusCode, page.Body)
	} else {
		data, err = robotstxt.FromBytes(page.Body)
	}
	if err != nil {
		r.logger.Debug("robots.txt unusable, defaulting to allow", "origin", origin, "err", err)
		data = nil
	}

	r.cache[origin] = data
	return data
}
