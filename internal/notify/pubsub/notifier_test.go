package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	notifypubsub "github.com/JakeFAU/bing-daily-crawler/internal/notify/pubsub"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return client, srv
}

func TestNotifierPublish(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)

	_, err := client.CreateTopic(ctx, "bing-runs")
	require.NoError(t, err)

	n := notifypubsub.New(client)
	t.Cleanup(func() { _ = n.Close() })

	id, err := n.Publish(ctx, "bing-runs", map[string]string{"date": "2024-01-01"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "2024-01-01", got["date"])
	assert.Equal(t, "application/json", msgs[0].Attributes["content_type"])
}

func TestNotifierPublishMissingTopic(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	n := notifypubsub.New(client)
	t.Cleanup(func() { _ = n.Close() })

	_, err := n.Publish(ctx, "does-not-exist", "x")
	assert.Error(t, err)
}

func TestNotifierValidation(t *testing.T) {
	_, err := notifypubsub.New(nil).Publish(context.Background(), "t", "x")
	assert.Error(t, err)

	client, _ := newTestClient(t)
	n := notifypubsub.New(client)
	t.Cleanup(func() { _ = n.Close() })
	_, err = n.Publish(context.Background(), "", "x")
	assert.Error(t, err)
}
