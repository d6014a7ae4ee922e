package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	errFlaky   = errors.New("flaky")
	errMissing = errors.New("missing")
	errFatal   = errors.New("fatal")
)

func classifyTest(err error) Class {
	switch {
	case errors.Is(err, errMissing):
		return Absent
	case errors.Is(err, errFatal):
		return Terminal
	default:
		return Retryable
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestDo(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		failures     []error
		wantAttempts int
		wantErr      error
	}{
		{name: "succeeds first try", wantAttempts: 1},
		{name: "succeeds after two failures", failures: []error{errFlaky, errFlaky}, wantAttempts: 3},
		{
			name:         "exhausts budget",
			failures:     []error{errFlaky, errFlaky, errFlaky, errFlaky, errFlaky, errFlaky},
			wantAttempts: 4,
			wantErr:      errFlaky,
		},
		{name: "absent stops immediately", failures: []error{errMissing}, wantAttempts: 1, wantErr: errMissing},
		{name: "terminal stops immediately", failures: []error{errFlaky, errFatal}, wantAttempts: 2, wantErr: errFatal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			op := func(context.Context) error {
				defer func() { calls++ }()
				if calls < len(tc.failures) {
					return tc.failures[calls]
				}
				return nil
			}

			attempts, err := Do(context.Background(), DefaultPolicy(), classifyTest, op, WithSleep(noSleep))
			require.Equal(t, tc.wantAttempts, attempts)
			require.Equal(t, tc.wantAttempts, calls)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDoReportsEachRetry(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	var seen []int
	policy := Policy{MaxAttempts: 3, MinDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond}
	_, err := Do(context.Background(), policy, nil, func(context.Context) error { return errFlaky },
		WithSleep(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}),
		WithOnRetry(func(attempt int, err error, _ time.Duration) {
			seen = append(seen, attempt)
			require.ErrorIs(t, err, errFlaky)
		}),
	)
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, []int{1, 2}, seen)
	require.Len(t, waits, 2)
	for _, w := range waits {
		require.GreaterOrEqual(t, w, policy.MinDelay)
		require.LessOrEqual(t, w, policy.MaxDelay)
	}
}

func TestDoStopsWhenContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	attempts, err := Do(ctx, DefaultPolicy(), classifyTest, func(context.Context) error {
		calls++
		cancel()
		return errFlaky
	}, WithSleep(noSleep))
	require.Error(t, err)
	require.Equal(t, 1, attempts)
	require.Equal(t, 1, calls)
}

func TestDoSleepErrorAbortsLoop(t *testing.T) {
	t.Parallel()

	interrupted := errors.New("interrupted")
	attempts, err := Do(context.Background(), DefaultPolicy(), classifyTest,
		func(context.Context) error { return errFlaky },
		WithSleep(func(context.Context, time.Duration) error { return interrupted }),
	)
	require.Equal(t, 1, attempts)
	require.ErrorIs(t, err, errFlaky)
	require.ErrorIs(t, err, interrupted)
}

func TestPolicyBackoffBounds(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	for i := 0; i < 200; i++ {
		d := p.Backoff()
		require.GreaterOrEqual(t, d, 500*time.Millisecond)
		require.LessOrEqual(t, d, time.Second)
	}

	fixed := Policy{MinDelay: time.Second, MaxDelay: time.Second}
	require.Equal(t, time.Second, fixed.Backoff())
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()

	attempts, err := Do(context.Background(), Policy{}, nil, func(context.Context) error { return errFlaky })
	require.Equal(t, 1, attempts)
	require.ErrorIs(t, err, errFlaky)
}

func TestClassString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "retryable", Retryable.String())
	require.Equal(t, "terminal", Terminal.String())
	require.Equal(t, "absent", Absent.String())
	require.Equal(t, "class(9)", Class(9).String())
}
