// Package notify builds the completion event published after each run.
package notify

import (
	"time"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
	"github.com/JakeFAU/bing-daily-crawler/internal/id/uuid"
)

// RunCompleted is the payload sent when a run finishes.
type RunCompleted struct {
	RunID      string    `json:"run_id"`
	Date       string    `json:"date"`
	Name       string    `json:"name"`
	Title      string    `json:"title,omitempty"`
	Published  bool      `json:"published"`
	Assets     []string  `json:"assets"`
	CoverURL   string    `json:"cover_url,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRunCompleted summarizes record. Assets follow the fixed resolution order.
// StartedAt is recovered from a UUIDv7 run ID and left zero for any other ID.
func NewRunCompleted(record bing.DayRecord, finishedAt time.Time) RunCompleted {
	assets := make([]string, 0, len(record.URLs))
	for _, res := range bing.Resolutions {
		if record.HasAsset(res) {
			assets = append(assets, string(res))
		}
	}
	cover, _ := record.CoverURL()
	var started time.Time
	if t, err := uuid.StartedAt(record.RunID); err == nil {
		started = t.UTC()
	}
	return RunCompleted{
		RunID:      record.RunID,
		Date:       record.Date,
		Name:       record.Name,
		Title:      record.Title,
		Published:  record.Published,
		Assets:     assets,
		CoverURL:   cover,
		Errors:     append([]string(nil), record.PublishErrors...),
		StartedAt:  started,
		FinishedAt: finishedAt.UTC(),
	}
}
