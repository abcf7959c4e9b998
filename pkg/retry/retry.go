// Package retry runs an operation until it yields a value or its attempt
// budget is spent.
//
// A Policy distinguishes two kinds of "no value": an operation that fails
// with an error consumes one attempt and is followed by a fixed wait, while an
// operation that completes without error but returns an empty value is simply
// invoked again without consuming anything. Exhaustion is never reported as an
// error; callers only see the boolean returned by Retry.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"
)

const (
	// DefaultAttempts is the attempt budget used when Config.Attempts is not positive.
	DefaultAttempts = 4
	// DefaultWait is the pause between failed attempts when Config.Wait is zero.
	DefaultWait = 1000 * time.Millisecond
)

// Operation is a single attempt.
type Operation[T any] func(ctx context.Context) (T, error)

// WaitFunc blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Config defines the setup for a Policy.
type Config struct {
	// Attempts is the number of erroring invocations allowed.
	Attempts int
	// Wait is the fixed delay after each failed attempt that still leaves budget.
	// Zero selects DefaultWait; there is no way to ask for no delay at all.
	Wait time.Duration
	Logger *slog.Logger
	// WaitFunc overrides the blocking delay. Mostly useful in tests.
	WaitFunc WaitFunc
	// OnRetry is called after every failed attempt with the 1-based number of
	// failures so far.
	OnRetry func(failures int, err error)
}

// Policy is a single-use retry executor. Build one per logical operation; the
// attempt counter is never shared or reset.
type Policy[T any] struct {
	remaining int
	failures  int
	wait      time.Duration
	waitFn    WaitFunc
	empty     func(T) bool
	onRetry   func(int, error)
	logger    *slog.Logger
	cancelled bool
}

// New creates a Policy. empty reports whether a value returned without error
// should be treated as "nothing yet"; when nil, only nil interface values,
// nil pointers, nil slices and nil maps count as empty.
func New[T any](cfg Config, empty func(T) bool) *Policy[T] {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Wait == 0 {
		cfg.Wait = DefaultWait
	}
	if cfg.WaitFunc == nil {
		cfg.WaitFunc = Sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if empty == nil {
		empty = IsNil[T]
	}
	return &Policy[T]{
		remaining: cfg.Attempts,
		wait:      cfg.Wait,
		waitFn:    cfg.WaitFunc,
		empty:     empty,
		onRetry:   cfg.OnRetry,
		logger:    cfg.Logger,
	}
}

// Retry invokes op until it returns a non-empty value or the attempt budget is
// exhausted. The second return value is false only on exhaustion; the last
// error is logged, never returned.
func (p *Policy[T]) Retry(ctx context.Context, op Operation[T]) (T, bool) {
	var zero T

	for p.remaining > 0 {
		v, err := op(ctx)
		if err == nil {
			if !p.empty(v) {
				return v, true
			}
			continue
		}

		p.remaining--
		p.failures++
		if p.onRetry != nil {
			p.onRetry(p.failures, err)
		}

		if p.remaining > 0 {
			p.logger.Error(err.Error(), "attempts_left", p.remaining)
			p.pause(ctx)
		} else {
			p.logger.Error("retry attempts exhausted",
				"failures", p.failures,
				"err", err,
				"err_type", fmt.Sprintf("%T", err),
			)
		}
	}

	return zero, false
}

// Remaining reports how many failing attempts the policy still allows.
func (p *Policy[T]) Remaining() int {
	return p.remaining
}

// Failures reports how many attempts have failed so far.
func (p *Policy[T]) Failures() int {
	return p.failures
}

// Cancelled reports whether a wait between attempts was cut short by context
// cancellation.
func (p *Policy[T]) Cancelled() bool {
	return p.cancelled
}

func (p *Policy[T]) pause(ctx context.Context) {
	p.logger.Info("waiting before next retry", "wait", p.wait)
	if err := p.waitFn(ctx, p.wait); err != nil {
		p.logger.Error("wait before next retry interrupted", "err", err)
		p.cancelled = true
	}
}

// Sleep is the default WaitFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsNil is the default emptiness predicate.
func IsNil[T any](v T) bool {
	if any(v) == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
