package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/tubescrape/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS search_attempts (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	url TEXT NOT NULL,
	seq INTEGER NOT NULL,
	status_code INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	results INTEGER NOT NULL,
	detected_bot BOOLEAN NOT NULL,
	detection_src TEXT,
	outcome TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS search_attempts_query_idx ON search_attempts (query, created_at);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, a *storage.Attempt) error {
	const query = `
	INSERT INTO search_attempts (
		id, query, url, seq, status_code, duration_ms, results, detected_bot, detection_src, outcome, created_at, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := b.pool.Exec(ctx, query,
		a.ID,
		a.Query,
		a.URL,
		a.Seq,
		a.StatusCode,
		a.Duration.Milliseconds(),
		a.Results,
		a.DetectedBot,
		a.DetectionSrc,
		string(a.Outcome),
		a.CreatedAt,
		a.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: save attempt %s: %w", a.ID, err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Attempt, error) {
	query := `SELECT id, query, url, seq, status_code, duration_ms, results, detected_bot, detection_src, outcome, created_at, error FROM search_attempts WHERE 1=1`
	args := []any{}
	param := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Query != "" {
		query += ` AND query = ` + param(filter.Query)
	}
	if filter.Outcome != "" {
		query += ` AND outcome = ` + param(string(filter.Outcome))
	}
	if filter.Since != nil {
		query += ` AND created_at >= ` + param(*filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ` + param(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + param(filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*storage.Attempt, error) {
		var a storage.Attempt
		var durationMs int64
		var outcome string
		var detectionSrc, errText *string

		if err := row.Scan(
			&a.ID, &a.Query, &a.URL, &a.Seq, &a.StatusCode, &durationMs, &a.Results,
			&a.DetectedBot, &detectionSrc, &outcome, &a.CreatedAt, &errText,
		); err != nil {
			return nil, err
		}
		a.Duration = time.Duration(durationMs) * time.Millisecond
		a.Outcome = storage.Outcome(outcome)
		if detectionSrc != nil {
			a.DetectionSrc = *detectionSrc
		}
		if errText != nil {
			a.Error = *errText
		}
		return &a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan: %w", err)
	}
	return out, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
