package bing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bing-daily-crawler/internal/metrics"
	"github.com/JakeFAU/bing-daily-crawler/internal/retry"
)

// DefaultHost is the public image source.
const DefaultHost = "https://www.bing.com"

// DefaultUserAgent mimics a desktop browser; the endpoint serves a trimmed
// payload to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/69.0.3497.100 Safari/537.36"

// DefaultMaxBodyBytes bounds a response body.
const DefaultMaxBodyBytes = 64 << 20

// ClientConfig controls the metadata and asset client.
type ClientConfig struct {
	Host      string
	UserAgent string
	Timeout   time.Duration
	Retry     retry.Policy
	// MaxBodyBytes rejects larger bodies instead of truncating them.
	MaxBodyBytes int64
}

// Client talks to the image-of-the-day endpoint.
type Client struct {
	http   *http.Client
	cfg    ClientConfig
	sleep  retry.SleepFunc
	logger *zap.Logger
}

// NewClient builds a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: httpClient, cfg: cfg, logger: logger}
}

// WithSleep overrides the wait between retries. Tests use it to skip real delays.
func (c *Client) WithSleep(fn retry.SleepFunc) *Client {
	c.sleep = fn
	return c
}

// Host returns the configured source host without a trailing slash.
func (c *Client) Host() string {
	return c.cfg.Host
}

// MetadataURL builds the endpoint URL for one locale.
func (c *Client) MetadataURL(locale string) string {
	q := url.Values{}
	q.Set("format", "js")
	q.Set("idx", "0")
	q.Set("n", "1")
	q.Set("mkt", locale)
	q.Set("pid", "hp")
	if strings.EqualFold(locale, "en-US") {
		q.Set("ensearch", "1")
	}
	return c.cfg.Host + "/HPImageArchive.aspx?" + q.Encode()
}

// AssetURL forms the download URL of one resolution.
func AssetURL(host, urlbase string, res Resolution) string {
	return strings.TrimRight(host, "/") + urlbase + "_" + string(res) + ".jpg"
}

// FetchMetadata retrieves and decodes the envelope for locale, retrying
// network failures, bad statuses (404 included), undecodable bodies and empty
// image lists.
func (c *Client) FetchMetadata(ctx context.Context, locale string) (Envelope, error) {
	target := c.MetadataURL(locale)
	var env Envelope
	attempts, err := retry.Do(ctx, c.cfg.Retry, Classify, func(ctx context.Context) error {
		decoded, err := c.getEnvelope(ctx, target)
		if err != nil {
			return err
		}
		env = decoded
		return nil
	}, c.retryOptions("metadata", zap.String("locale", locale))...)
	if err != nil {
		metrics.ObserveMetadataFetch(locale, metrics.StatusFailed, attempts)
		return Envelope{}, fmt.Errorf("fetch metadata for %s after %d attempts: %w: %w", locale, attempts, ErrTransientNetwork, err)
	}
	metrics.ObserveMetadataFetch(locale, metrics.StatusOK, attempts)
	c.logger.Debug("metadata fetched", zap.String("locale", locale), zap.Int("attempts", attempts))
	return env, nil
}

// FetchAsset downloads one asset. A 404 stops immediately and matches
// ErrNotFoundAsset; other failures are retried up to the policy bound.
func (c *Client) FetchAsset(ctx context.Context, target string) ([]byte, error) {
	var body []byte
	attempts, err := retry.Do(ctx, c.cfg.Retry, Classify, func(ctx context.Context) error {
		data, err := c.get(ctx, target, true)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("empty body from %s", target)
		}
		body = data
		return nil
	}, c.retryOptions("asset", zap.String("url", target))...)
	if err != nil {
		if Classify(err) == retry.Absent {
			return nil, err
		}
		return nil, fmt.Errorf("fetch asset after %d attempts: %w: %w", attempts, ErrTransientNetwork, err)
	}
	return body, nil
}

func (c *Client) retryOptions(op string, fields ...zap.Field) []retry.Option {
	opts := []retry.Option{
		retry.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logFields := make([]zap.Field, 0, len(fields)+4)
			logFields = append(logFields, fields...)
			logFields = append(logFields,
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
			c.logger.Warn("retrying request", logFields...)
		}),
	}
	if c.sleep != nil {
		opts = append(opts, retry.WithSleep(c.sleep))
	}
	return opts
}

func (c *Client) getEnvelope(ctx context.Context, target string) (Envelope, error) {
	data, err := c.get(ctx, target, false)
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode metadata: %w", err)
	}
	if len(env.Images) == 0 {
		return Envelope{}, errEmptyEnvelope
	}
	return env, nil
}

func (c *Client) get(ctx context.Context, target string, asset bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("error closing response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: target, Asset: asset}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > c.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: body of %s exceeds %d bytes", errBodyTooLarge, target, c.cfg.MaxBodyBytes)
	}
	return data, nil
}
