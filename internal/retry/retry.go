// Package retry runs an operation under a bounded attempt budget with jittered waits.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Class tells Do what to do with a failed attempt.
type Class int

// Supported error classes.
const (
	// Retryable errors are attempted again until the budget runs out.
	Retryable Class = iota
	// Terminal errors stop immediately.
	Terminal
	// Absent marks an expected absence: stop immediately, the caller treats it as "nothing there".
	Absent
)

func (c Class) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	case Absent:
		return "absent"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Classifier maps an error to a Class.
type Classifier func(err error) Class

// Operation is one attempt.
type Operation func(ctx context.Context) error

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bounds attempts and the uniform wait between them.
type Policy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy makes 4 attempts separated by 0.5s to 1s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		MinDelay:    500 * time.Millisecond,
		MaxDelay:    time.Second,
	}
}

// Backoff returns a uniformly distributed wait in [MinDelay, MaxDelay].
func (p Policy) Backoff() time.Duration {
	if p.MaxDelay <= p.MinDelay {
		return p.MinDelay
	}
	return p.MinDelay + randomJitter(p.MaxDelay-p.MinDelay)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)+1))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// RetryFunc observes a failed attempt that is about to be retried.
type RetryFunc func(attempt int, err error, wait time.Duration)

type settings struct {
	sleep   SleepFunc
	onRetry RetryFunc
}

// Option customizes Do.
type Option func(*settings)

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(s *settings) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithOnRetry registers a hook called before each wait.
func WithOnRetry(fn RetryFunc) Option {
	return func(s *settings) {
		s.onRetry = fn
	}
}

// Do runs op until it succeeds, a non-retryable error is returned, the
// attempt budget is exhausted, or ctx is done. It returns the number of
// attempts made and the last error.
func Do(ctx context.Context, p Policy, classify Classifier, op Operation, opts ...Option) (int, error) {
	s := settings{sleep: sleepContext}
	for _, opt := range opts {
		opt(&s)
	}
	if classify == nil {
		classify = func(error) Class { return Retryable }
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if classify(lastErr) != Retryable {
			return attempt, lastErr
		}
		if ctx.Err() != nil {
			return attempt, lastErr
		}
		if attempt == maxAttempts {
			break
		}
		wait := p.Backoff()
		if s.onRetry != nil {
			s.onRetry(attempt, lastErr, wait)
		}
		if err := s.sleep(ctx, wait); err != nil {
			return attempt, fmt.Errorf("%w (retry wait: %w)", lastErr, err)
		}
	}
	return maxAttempts, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
