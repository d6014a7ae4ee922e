package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSinkRecordsPostsInOrder(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	ref, err := s.SendDocument(ctx, "@archive", "u", "c")
	require.NoError(t, err)
	require.Equal(t, int64(1), ref.MessageID)
	require.Equal(t, "memory-file-1", ref.FileID)

	id, err := s.SendMessage(ctx, "@archive", "text")
	require.NoError(t, err)
	require.Equal(t, int64(2), id)

	photo, err := s.SendPhoto(ctx, "@main", "u", "cap")
	require.NoError(t, err)
	require.Equal(t, int64(3), photo.MessageID)

	posts := s.Posts()
	require.Len(t, posts, 3)
	require.Equal(t, "sendPhoto", posts[2].Method)
	require.Equal(t, "@main", posts[2].ChatID)
}
