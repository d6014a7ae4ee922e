// Package records fans a finished DayRecord out to its durable stores.
package records

import (
	"context"
	"fmt"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
)

// Multi saves to every store in order. All stores are attempted; the first
// error is returned.
type Multi []bing.RecordStore

// Save implements bing.RecordStore.
func (m Multi) Save(ctx context.Context, record bing.DayRecord) error {
	var first error
	for i, store := range m {
		if store == nil {
			continue
		}
		if err := store.Save(ctx, record); err != nil && first == nil {
			first = fmt.Errorf("record store %d: %w", i, err)
		}
	}
	return first
}
