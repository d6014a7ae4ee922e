// Package metrics exposes Prometheus collectors for the daily crawl.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	registry *prometheus.Registry

	metadataFetchTotal     *prometheus.CounterVec
	metadataFetchAttempts  *prometheus.HistogramVec
	assetsTotal            *prometheus.CounterVec
	assetBytesTotal        *prometheus.CounterVec
	publishTotal           *prometheus.CounterVec
	rateLimitDelay         *prometheus.HistogramVec
	runsTotal              *prometheus.CounterVec
	runDurationSeconds     prometheus.Histogram
	lastSuccessfulRunEpoch prometheus.Gauge
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		factory := func(c prometheus.Collector) {
			registry.MustRegister(c)
		}

		metadataFetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bing_metadata_fetch_total",
				Help: "Metadata fetches, labeled by locale and outcome.",
			},
			[]string{"locale", "status"},
		)
		factory(metadataFetchTotal)

		metadataFetchAttempts = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bing_metadata_fetch_attempts",
				Help:    "Attempts needed per metadata fetch, labeled by locale.",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
			[]string{"locale"},
		)
		factory(metadataFetchAttempts)

		assetsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bing_assets_total",
				Help: "Asset downloads, labeled by resolution and outcome (ok, absent, failed).",
			},
			[]string{"resolution", "status"},
		)
		factory(assetsTotal)

		assetBytesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bing_asset_bytes_total",
				Help: "Bytes downloaded, labeled by resolution.",
			},
			[]string{"resolution"},
		)
		factory(assetBytesTotal)

		publishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bing_publish_total",
				Help: "Messaging sink calls, labeled by phase and outcome.",
			},
			[]string{"phase", "status"},
		)
		factory(publishTotal)

		rateLimitDelay = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bing_sink_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the messaging rate limiter, labeled by chat.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"chat"},
		)
		factory(rateLimitDelay)

		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bing_runs_total",
				Help: "Pipeline runs, labeled by outcome.",
			},
			[]string{"status"},
		)
		factory(runsTotal)

		runDurationSeconds = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bing_run_duration_seconds",
				Help:    "Wall time of a pipeline run.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		)
		factory(runDurationSeconds)

		lastSuccessfulRunEpoch = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bing_last_successful_run_timestamp_seconds",
				Help: "Unix time of the last run that published and persisted a record.",
			},
		)
		factory(lastSuccessfulRunEpoch)

		httpRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bing_http_requests_total",
				Help: "Requests served by the metrics listener, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
		factory(httpRequestsTotal)

		httpRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bing_http_request_duration_seconds",
				Help:    "Latency of requests served by the metrics listener, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
		factory(httpRequestDuration)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Push sends the current collectors to a Pushgateway under the given job name.
func Push(url, job string) error {
	Init()
	if err := push.New(url, job).Gatherer(registry).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// ObserveMetadataFetch records one metadata fetch.
func ObserveMetadataFetch(locale, status string, attempts int) {
	Init()
	metadataFetchTotal.WithLabelValues(locale, status).Inc()
	metadataFetchAttempts.WithLabelValues(locale).Observe(float64(attempts))
}

// ObserveAsset records one asset download outcome.
func ObserveAsset(resolution, status string, bytesFetched int) {
	Init()
	assetsTotal.WithLabelValues(resolution, status).Inc()
	if bytesFetched > 0 {
		assetBytesTotal.WithLabelValues(resolution).Add(float64(bytesFetched))
	}
}

// ObservePublish records one messaging sink call.
func ObservePublish(phase, status string) {
	Init()
	publishTotal.WithLabelValues(phase, status).Inc()
}

// ObserveRateLimitDelay records time spent waiting for a send slot.
func ObserveRateLimitDelay(chat string, d time.Duration) {
	Init()
	rateLimitDelay.WithLabelValues(chat).Observe(d.Seconds())
}

// ObserveRun records the outcome and duration of a pipeline run.
func ObserveRun(status string, duration time.Duration, finished time.Time) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Observe(duration.Seconds())
	if status == StatusOK {
		lastSuccessfulRunEpoch.Set(float64(finished.Unix()))
	}
}

// ObserveHTTPRequest records one request served by the metrics listener.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Outcome labels shared by the collectors.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
	StatusAbsent = "absent"
)
