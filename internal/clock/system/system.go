// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements bing.Clock and schedule.Clock using the process clock.
// It keeps the local zone; run dates and wait targets are resolved by the
// caller in the configured location.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now()
}

// After waits for the duration to elapse and then sends the current time on the returned channel.
func (Clock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
