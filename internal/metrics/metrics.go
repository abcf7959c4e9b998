package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubescrape_fetches_total",
			Help: "Search page fetches by HTTP status and detected interstitial",
		},
		[]string{"status", "detection_src"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tubescrape_fetch_duration_seconds",
			Help:    "Duration of search page fetches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	FetchBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tubescrape_fetch_bytes_total",
			Help: "Total bytes downloaded across all search page fetches",
		},
	)

	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubescrape_attempts_total",
			Help: "Fetch-and-parse attempts by outcome",
		},
		[]string{"outcome"},
	)

	RetryWaitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tubescrape_retries_total",
			Help: "Failed attempts charged to a retry budget",
		},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubescrape_searches_total",
			Help: "Completed searches; exhausted means every attempt failed",
		},
		[]string{"result"},
	)

	VideosReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tubescrape_videos_per_search",
			Help:    "Number of videos returned per search",
			Buckets: []float64{0, 1, 5, 10, 20, 30, 50},
		},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubescrape_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)
)

// RecordFetch updates fetch metrics. status is 0 when no response arrived.
func RecordFetch(status int, detectionSrc string, bytes int, d time.Duration) {
	statusStr := "error"
	if status > 0 {
		statusStr = strconv.Itoa(status)
	}
	FetchesTotal.WithLabelValues(statusStr, detectionSrc).Inc()
	FetchDuration.Observe(d.Seconds())
	FetchBytesTotal.Add(float64(bytes))
}

// RecordSearch updates per-search metrics once a search has finished.
func RecordSearch(videos int, exhausted bool) {
	result := "ok"
	if exhausted {
		result = "exhausted"
	}
	SearchesTotal.WithLabelValues(result).Inc()
	if !exhausted {
		VideosReturned.Observe(float64(videos))
	}
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", srv.Addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
