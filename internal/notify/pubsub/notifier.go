// Package pubsub implements a Google Cloud Pub/Sub notifier.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
)

// Notifier publishes JSON payloads through a Pub/Sub client.
type Notifier struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// New creates a Notifier for the provided client.
func New(client *pubsub.Client) *Notifier {
	return &Notifier{client: client, topics: make(map[string]*pubsub.Topic)}
}

// Dial connects to Pub/Sub for projectID.
func Dial(ctx context.Context, projectID string) (*Notifier, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return New(client), nil
}

// Publish marshals the payload to JSON and publishes it to the topic.
func (n *Notifier) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if n.client == nil {
		return "", fmt.Errorf("pubsub client is not configured")
	}
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"content_type": "application/json"},
	}
	result := n.topic(topic).Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and closes the client.
func (n *Notifier) Close() error {
	n.mu.Lock()
	for _, t := range n.topics {
		t.Stop()
	}
	n.mu.Unlock()
	if n.client == nil {
		return nil
	}
	return n.client.Close()
}

func (n *Notifier) topic(id string) *pubsub.Topic {
	n.mu.Lock()
	defer n.mu.Unlock()
	if t, ok := n.topics[id]; ok {
		return t
	}
	t := n.client.Topic(id)
	n.topics[id] = t
	return t
}
