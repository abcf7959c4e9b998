package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/tubescrape/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS search_attempts (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	url TEXT NOT NULL,
	seq INTEGER NOT NULL,
	status_code INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	results INTEGER NOT NULL,
	detected_bot BOOLEAN NOT NULL,
	detection_src TEXT,
	outcome TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS search_attempts_query_idx ON search_attempts (query, created_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, a *storage.Attempt) error {
	const query = `
	INSERT INTO search_attempts (
		id, query, url, seq, status_code, duration_ms, results, detected_bot, detection_src, outcome, created_at, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
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
		a.CreatedAt.UTC(),
		a.Error,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save attempt %s: %w", a.ID, err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Attempt, error) {
	query := `SELECT id, query, url, seq, status_code, duration_ms, results, detected_bot, detection_src, outcome, created_at, error FROM search_attempts WHERE 1=1`
	args := []any{}

	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	if filter.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, string(filter.Outcome))
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// OFFSET requires a LIMIT in SQLite
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var out []*storage.Attempt
	for rows.Next() {
		var a storage.Attempt
		var durationMs int64
		var outcome string

		err := rows.Scan(
			&a.ID, &a.Query, &a.URL, &a.Seq, &a.StatusCode, &durationMs, &a.Results,
			&a.DetectedBot, &a.DetectionSrc, &outcome, &a.CreatedAt, &a.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		a.Duration = time.Duration(durationMs) * time.Millisecond
		a.Outcome = storage.Outcome(outcome)

		out = append(out, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}
	return out, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
