package retry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultAttempts = 3
	DefaultMinDelay = 4 * time.Second
	DefaultMaxDelay = 10 * time.Second
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes how an operation is retried.
// The delay before retry n (1-based) is MinDelay*2^(n-1), capped at MaxDelay.
type Policy struct {
	Attempts  int
	MinDelay  time.Duration
	MaxDelay  time.Duration
	Retryable func(error) bool
	Sleep     SleepFunc
}

// DefaultPolicy returns the stock database retry policy. It retries every error;
// callers narrow it with WithRetryable.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: DefaultAttempts,
		MinDelay: DefaultMinDelay,
		MaxDelay: DefaultMaxDelay,
	}
}

// WithRetryable returns a copy of p that only retries errors accepted by fn.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	delay := p.MinDelay
	if delay <= 0 {
		delay = DefaultMinDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay < delay {
		maxDelay = delay
	}

	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return min(delay, maxDelay)
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return zero, err
		}
		if !p.retryable(err) || attempt == attempts {
			return zero, err
		}

		wait := p.Backoff(attempt)
		log.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", wait).
			Msg("Operation failed; retrying")

		if err := p.sleep(ctx, wait); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// Sleep waits for d, returning early with ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
