package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/tubescrape/internal/youtube"
)

// DefaultConcurrency bounds in-flight searches when Pipeline.Concurrency is unset.
const DefaultConcurrency = 4

// Searcher runs one search. *youtube.Scraper satisfies it.
type Searcher interface {
	GetVideos(ctx context.Context, query string) []youtube.SearchResult
}

// Result pairs a query with what its search returned.
type Result struct {
	Query  string                 `json:"query"`
	Videos []youtube.SearchResult `json:"videos"`
}

// Pipeline fans a batch of queries out over a Searcher. Every query gets its
// own GetVideos call and therefore its own retry budget.
type Pipeline struct {
	Searcher    Searcher
	Concurrency int
	Logger      *slog.Logger
}

// Run searches every query and returns results in input order. It only
// fails if the Searcher is missing or ctx ends before all queries started;
// a query whose retries were exhausted simply has no videos.
func (p *Pipeline) Run(ctx context.Context, queries []string) ([]Result, error) {
	if p.Searcher == nil {
		return nil, errors.New("pipeline: searcher is nil")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := p.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, q := range queries {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			videos := p.Searcher.GetVideos(gctx, q)
			results[i] = Result{Query: q, Videos: videos}
			logger.Debug("query finished", "query", q, "videos", len(videos))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
