package storage

import (
	"context"
	"time"
)

// Outcome classifies how a fetch attempt ended.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"    // parsed, at least one video
	OutcomeEmpty Outcome = "empty" // parsed, zero videos
	OutcomeError Outcome = "error" // the attempt failed and was charged to the retry budget
)

// Attempt is the audit record of a single fetch-and-parse attempt. Page bodies
// are never recorded.
type Attempt struct {
	ID           string        `json:"id"`
	Query        string        `json:"query"`
	URL          string        `json:"url"`
	Seq          int           `json:"attempt"`
	StatusCode   int           `json:"status_code"`
	Duration     time.Duration `json:"duration"`
	Results      int           `json:"results"`
	DetectedBot  bool          `json:"detected_bot"`
	DetectionSrc string        `json:"detection_src,omitempty"`
	Outcome      Outcome       `json:"outcome"`
	CreatedAt    time.Time     `json:"created_at"`
	Error        string        `json:"error,omitempty"`
}

// Filter allows querying for specific attempts.
type Filter struct {
	Query   string
	Outcome Outcome
	Since   *time.Time
	Limit   int
	Offset  int
}

// Backend defines the interface for storing and querying attempt records.
type Backend interface {
	Save(ctx context.Context, a *Attempt) error
	Query(ctx context.Context, filter Filter) ([]*Attempt, error)
	Close() error
}

// Nop discards everything. Used when no audit backend is configured.
type Nop struct{}

func (Nop) Save(context.Context, *Attempt) error              { return nil }
func (Nop) Query(context.Context, Filter) ([]*Attempt, error) { return nil, nil }
func (Nop) Close() error                                      { return nil }
