package bing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JakeFAU/bing-daily-crawler/internal/retry"
)

// Error kinds surfaced by the pipeline. Callers match them with errors.Is.
var (
	ErrTransientNetwork  = errors.New("transient network error")
	ErrNotFoundAsset     = errors.New("asset not found")
	ErrMalformedMetadata = errors.New("malformed metadata")
	ErrPublish           = errors.New("publish error")
	ErrPersistence       = errors.New("persistence error")
)

var (
	errEmptyEnvelope = errors.New("metadata envelope has no images")
	errBodyTooLarge  = errors.New("response body too large")
)

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	// Asset marks an asset download. Only then does a 404 mean the
	// resolution does not exist; a metadata 404 is an ordinary failure.
	Asset bool
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// Is lets an asset 404 match ErrNotFoundAsset.
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrNotFoundAsset && e.Asset && e.StatusCode == http.StatusNotFound
}

// Classify maps pipeline errors onto retry classes. A missing asset is an
// expected absence. Malformed metadata, oversized bodies and cancellation are
// terminal. Everything else, a metadata 404 included, is worth another attempt.
func Classify(err error) retry.Class {
	switch {
	case err == nil:
		return retry.Terminal
	case errors.Is(err, ErrNotFoundAsset):
		return retry.Absent
	case errors.Is(err, ErrMalformedMetadata), errors.Is(err, errBodyTooLarge), errors.Is(err, context.Canceled):
		return retry.Terminal
	default:
		return retry.Retryable
	}
}
