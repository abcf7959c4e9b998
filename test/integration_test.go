//go:build integration

package test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/tubescrape/internal/fingerprint"
	"github.com/FranksOps/tubescrape/internal/pipeline"
	"github.com/FranksOps/tubescrape/internal/report"
	"github.com/FranksOps/tubescrape/internal/scraper"
	"github.com/FranksOps/tubescrape/internal/storage"
	"github.com/FranksOps/tubescrape/internal/storage/sqlite"
	"github.com/FranksOps/tubescrape/internal/youtube"
	"github.com/FranksOps/tubescrape/pkg/useragent"
)

func resultsPage(query string) string {
	return fmt.Sprintf(`<html><head><script>var ytcfg = {};</script></head><body>
<script nonce="x">var ytInitialData = {"contents":{"twoColumnSearchResultsRenderer":{"primaryContents":{"sectionListRenderer":{"contents":[{"itemSectionRenderer":{"contents":[{"videoRenderer":{"videoId":"%[1]s-1","title":{"runs":[{"text":"%[1]s one"}]},"thumbnail":{"thumbnails":[{"url":"http://t/%[1]s-1.jpg"}]}}},{"adSlotRenderer":{}},{"videoRenderer":{"videoId":"%[1]s-2","title":{"runs":[{"text":"%[1]s two"}]},"thumbnail":{"thumbnails":[{"url":"http://t/%[1]s-2.jpg"}]}}}]}}]}}}}};</script>
</body></html>`, query)
}

// TestIntegration_BatchWithConsentWall runs the whole stack: the first request
// for every query lands on a consent page, the retry brings back results, and
// every attempt ends up in the sqlite audit log.
func TestIntegration_BatchWithConsentWall(t *testing.T) {
	var hits atomic.Int32
	seen := make(map[string]*atomic.Int32)
	queries := []string{"alpha", "beta", "gamma"}
	for _, q := range queries {
		seen[q] = &atomic.Int32{}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query().Get("search_query")
		if r.Header.Get("User-Agent") != "IntegrationUA/1.0" {
			t.Errorf("unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		counter, ok := seen[q]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if counter.Add(1) == 1 {
			_, _ = w.Write([]byte(`<html><form action="https://consent.youtube.com/save" method="POST"></form></html>`))
			return
		}
		_, _ = w.Write([]byte(resultsPage(q)))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	backend, err := sqlite.New(filepath.Join(t.TempDir(), "attempts.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer backend.Close()

	logger := slog.Default()
	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		UAPool:      useragent.NewPool([]string{"IntegrationUA/1.0"}, useragent.Sequential),
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("fetcher: %v", err)
	}

	s, err := youtube.New(youtube.Config{
		BaseURL:   ts.URL + "/results",
		Attempts:  3,
		RetryWait: 10 * time.Millisecond,
		Fetcher:   fetcher,
		Backend:   backend,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("scraper: %v", err)
	}

	p := pipeline.Pipeline{Searcher: s, Concurrency: 2, Logger: logger}
	results, err := p.Run(context.Background(), queries)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	for i, r := range results {
		if r.Query != queries[i] {
			t.Errorf("result %d out of order: %s", i, r.Query)
		}
		if len(r.Videos) != 2 || !strings.HasPrefix(r.Videos[0].VideoID, r.Query) {
			t.Errorf("query %s: unexpected videos %+v", r.Query, r.Videos)
		}
	}
	if n := hits.Load(); n != 6 {
		t.Errorf("expected 6 requests (one consent page and one success per query), got %d", n)
	}

	attempts, err := backend.Query(context.Background(), storage.Filter{})
	if err != nil {
		t.Fatalf("query audit log: %v", err)
	}
	summary := report.GenerateSummary(attempts)
	if summary.TotalAttempts != 6 || summary.TotalFailures != 3 || summary.DetectionsBySrc["ConsentWall"] != 3 {
		t.Errorf("unexpected audit summary %+v", summary)
	}
	if summary.TotalVideos != 6 {
		t.Errorf("expected 6 videos in audit log, got %d", summary.TotalVideos)
	}
}
