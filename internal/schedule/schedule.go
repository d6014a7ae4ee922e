// Package schedule holds a run until a fixed wall-clock time of day.
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultPoll is how often the wait loop re-checks the clock.
const DefaultPoll = 30 * time.Second

// Clock is the time source the wait loop polls.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// ParseAt parses an "HH:MM" time of day.
func ParseAt(at string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q (want HH:MM): %w", at, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextRunAt returns the target on now's calendar day in loc. When now is
// already past that instant the returned target is in the past, so WaitUntil
// returns at once and a late start still runs the same day.
func NextRunAt(now time.Time, at string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	hour, minute, err := ParseAt(at)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc), nil
}

// WaitUntil blocks until clk reports a time at or after target. It sleeps at
// most poll between checks so suspended hosts and clock changes are noticed.
func WaitUntil(ctx context.Context, clk Clock, target time.Time, poll time.Duration, logger *zap.Logger) error {
	if poll <= 0 {
		poll = DefaultPoll
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logged := false
	for {
		now := clk.Now()
		if !now.Before(target) {
			return nil
		}
		remaining := target.Sub(now)
		if !logged {
			logger.Info("waiting for scheduled run",
				zap.Time("target", target),
				zap.Duration("remaining", remaining.Truncate(time.Second)))
			logged = true
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", target.Format(time.RFC3339), ctx.Err())
		case <-clk.After(min(poll, remaining)):
		}
	}
}
