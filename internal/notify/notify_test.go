package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
	"github.com/JakeFAU/bing-daily-crawler/internal/id/uuid"
)

func TestNewRunCompleted(t *testing.T) {
	t.Parallel()

	finished := time.Date(2024, 1, 1, 0, 2, 0, 0, time.FixedZone("CST", 8*3600))
	rec := bing.DayRecord{
		RunID: "run-1",
		Date:  "2024-01-01",
		Name:  "OHR.Fox_EN-US1",
		URLs: map[bing.Resolution]string{
			bing.Resolution1080x1920: "m",
			bing.ResolutionUHD:       "u",
		},
		Published: true,
	}

	evt := NewRunCompleted(rec, finished)
	require.Equal(t, []string{"UHD", "1080x1920"}, evt.Assets)
	require.Equal(t, "u", evt.CoverURL)
	require.True(t, evt.Published)
	require.Equal(t, time.UTC, evt.FinishedAt.Location())
	require.Empty(t, evt.Errors)
	require.True(t, evt.StartedAt.IsZero(), "non-UUIDv7 run ids carry no start time")
}

func TestNewRunCompletedStartedAtFromRunID(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	runID, err := uuid.New().NewID()
	require.NoError(t, err)

	evt := NewRunCompleted(bing.DayRecord{RunID: runID}, time.Now())
	require.False(t, evt.StartedAt.IsZero())
	require.True(t, evt.StartedAt.After(before))
	require.False(t, evt.StartedAt.After(evt.FinishedAt))
	require.Equal(t, time.UTC, evt.StartedAt.Location())
}
