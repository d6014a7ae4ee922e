package records

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
)

type fakeStore struct {
	saved []bing.DayRecord
	err   error
}

func (f *fakeStore) Save(_ context.Context, r bing.DayRecord) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, r)
	return nil
}

func TestMultiSavesToAll(t *testing.T) {
	t.Parallel()

	a, b := &fakeStore{}, &fakeStore{}
	require.NoError(t, Multi{a, nil, b}.Save(context.Background(), bing.DayRecord{Date: "2024-01-01"}))
	require.Len(t, a.saved, 1)
	require.Len(t, b.saved, 1)
}

func TestMultiFirstErrorWins(t *testing.T) {
	t.Parallel()

	first := errors.New("disk full")
	a := &fakeStore{err: first}
	b := &fakeStore{err: errors.New("connection refused")}
	c := &fakeStore{}

	err := Multi{a, b, c}.Save(context.Background(), bing.DayRecord{})
	require.ErrorIs(t, err, first)
	require.Len(t, c.saved, 1, "later stores are still attempted")
}
