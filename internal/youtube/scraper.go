// Package youtube scrapes video results from a YouTube search page.
//
// Each GetVideos call fetches the results page, pulls the ytInitialData JSON
// out of its scripts and projects the first item section into SearchResults.
// The fetch-and-parse attempt runs under its own retry.Policy, so every
// failure mode surfaces to the caller as an empty result.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/tubescrape/internal/metrics"
	"github.com/FranksOps/tubescrape/internal/scraper"
	"github.com/FranksOps/tubescrape/internal/storage"
	"github.com/FranksOps/tubescrape/pkg/retry"
)

// DefaultBaseURL is the search endpoint queried when Config.BaseURL is empty.
const DefaultBaseURL = "https://www.youtube.com/results"

const watchBaseURL = "https://www.youtube.com/watch"

// SearchResult is one video from a results page.
type SearchResult struct {
	Title        string `json:"title"`
	VideoID      string `json:"videoId"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// WatchURL returns the playback page for the video.
func (r SearchResult) WatchURL() string {
	return watchBaseURL + "?v=" + url.QueryEscape(r.VideoID)
}

// PageFetcher is the HTTP side of an attempt. *scraper.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL string) (*scraper.Page, error)
}

// Config configures a Scraper.
type Config struct {
	BaseURL   string
	Attempts  int
	// RetryWait of zero means retry.DefaultWait.
	RetryWait time.Duration
	// WaitFunc replaces the blocking retry wait. Tests only.
	WaitFunc  retry.WaitFunc
	Fetcher   PageFetcher
	Extractor Extractor
	Backend   storage.Backend
	Logger    *slog.Logger
}

// Scraper runs searches. It holds no per-search state and is safe for
// concurrent use as long as its Fetcher and Backend are.
type Scraper struct {
	base      *url.URL
	cfg       Config
	fetcher   PageFetcher
	extractor Extractor
	backend   storage.Backend
	logger    *slog.Logger
}

// New builds a Scraper. A nil Fetcher gets a default scraper.Fetcher.
func New(cfg Config) (*Scraper, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("youtube: invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("youtube: base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = ScriptExtractor{}
	}
	if cfg.Backend == nil {
		cfg.Backend = storage.Nop{}
	}
	if cfg.Fetcher == nil {
		f, err := scraper.NewFetcher(scraper.FetchConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		cfg.Fetcher = f
	}

	return &Scraper{
		base:      base,
		cfg:       cfg,
		fetcher:   cfg.Fetcher,
		extractor: cfg.Extractor,
		backend:   cfg.Backend,
		logger:    cfg.Logger,
	}, nil
}

// SearchURL returns the results page URL for query.
func (s *Scraper) SearchURL(query string) string {
	u := *s.base
	q := u.Query()
	q.Set("search_query", query)
	u.RawQuery = q.Encode()
	return u.String()
}

// GetVideos returns the videos on the first results page for query, in page
// order. It never fails: when every attempt errors, the result is empty.
func (s *Scraper) GetVideos(ctx context.Context, query string) []SearchResult {
	target := s.SearchURL(query)
	logger := s.logger.With("query", query)

	policy := retry.New(retry.Config{
		Attempts: s.cfg.Attempts,
		Wait:     s.cfg.RetryWait,
		Logger:   logger,
		WaitFunc: s.cfg.WaitFunc,
		OnRetry: func(int, error) {
			metrics.RetryWaitsTotal.Inc()
		},
	}, func(v []SearchResult) bool { return v == nil })

	seq := 0
	videos, ok := policy.Retry(ctx, func(ctx context.Context) ([]SearchResult, error) {
		seq++
		return s.attempt(ctx, query, target, seq)
	})
	metrics.RecordSearch(len(videos), !ok)

	if !ok {
		return nil
	}
	logger.Info("search complete", "videos", len(videos), "attempts", seq)
	return videos
}

// Lookup returns the record for a single video. Only the id is known; nothing
// is fetched.
func (s *Scraper) Lookup(videoID string) SearchResult {
	return SearchResult{VideoID: videoID}
}

// attempt is one fetch-and-parse pass. Panics are turned into errors so that
// they count against the retry budget like any other failure.
func (s *Scraper) attempt(ctx context.Context, query, target string, seq int) (videos []SearchResult, err error) {
	rec := &storage.Attempt{
		ID:        uuid.NewString(),
		Query:     query,
		URL:       target,
		Seq:       seq,
		CreatedAt: time.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			videos, err = nil, fmt.Errorf("youtube: attempt panicked: %v", r)
		}
		s.audit(ctx, rec, videos, err)
	}()

	page, err := s.fetcher.Fetch(ctx, target)
	if page != nil {
		rec.StatusCode = page.StatusCode
		rec.Duration = page.Duration
		rec.DetectedBot = page.DetectedBot
		rec.DetectionSrc = page.DetectionSrc
	}
	if err != nil {
		return nil, err
	}

	raw, err := s.extractor.Extract(page.Body)
	if err != nil {
		if errors.Is(err, ErrNoInitialData) {
			s.logger.Warn("unrecognized search page", "query", query, "url", target, "bytes", len(page.Body))
		}
		return nil, err
	}

	root, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return project(root)
}

func (s *Scraper) audit(ctx context.Context, rec *storage.Attempt, videos []SearchResult, err error) {
	switch {
	case err != nil:
		rec.Outcome = storage.OutcomeError
		rec.Error = err.Error()
	case len(videos) == 0:
		rec.Outcome = storage.OutcomeEmpty
	default:
		rec.Outcome = storage.OutcomeOK
	}
	rec.Results = len(videos)
	metrics.AttemptsTotal.WithLabelValues(string(rec.Outcome)).Inc()

	if serr := s.backend.Save(context.WithoutCancel(ctx), rec); serr != nil {
		s.logger.Error("failed to record attempt", "query", rec.Query, "attempt", rec.Seq, "err", serr)
	}
}
