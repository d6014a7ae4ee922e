package bing

import (
	"context"
	"io"
	"time"
)

// MetadataFetcher retrieves the metadata envelope for one locale.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, locale string) (Envelope, error)
}

// AssetFetcher downloads one asset and returns its bytes.
type AssetFetcher interface {
	FetchAsset(ctx context.Context, url string) ([]byte, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RecordStore durably stores a finished DayRecord.
type RecordStore interface {
	Save(ctx context.Context, record DayRecord) error
}

// Sink is the messaging API the publisher posts to.
type Sink interface {
	SendDocument(ctx context.Context, chatID, documentURL, caption string) (ArchiveRef, error)
	SendMessage(ctx context.Context, chatID, text string) (int64, error)
	SendPhoto(ctx context.Context, chatID, photoURL, caption string) (PhotoResult, error)
}

// Notifier pushes run completion events to Pub/Sub (or similar).
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for integrity checks.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
