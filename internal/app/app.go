// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
	"github.com/JakeFAU/bing-daily-crawler/internal/clock/system"
	"github.com/JakeFAU/bing-daily-crawler/internal/config"
	"github.com/JakeFAU/bing-daily-crawler/internal/downloader"
	"github.com/JakeFAU/bing-daily-crawler/internal/hash/sha256"
	"github.com/JakeFAU/bing-daily-crawler/internal/id/uuid"
	"github.com/JakeFAU/bing-daily-crawler/internal/metrics"
	"github.com/JakeFAU/bing-daily-crawler/internal/middleware"
	notifymemory "github.com/JakeFAU/bing-daily-crawler/internal/notify/memory"
	notifypubsub "github.com/JakeFAU/bing-daily-crawler/internal/notify/pubsub"
	"github.com/JakeFAU/bing-daily-crawler/internal/pipeline"
	"github.com/JakeFAU/bing-daily-crawler/internal/publisher"
	"github.com/JakeFAU/bing-daily-crawler/internal/records"
	"github.com/JakeFAU/bing-daily-crawler/internal/records/jsonfile"
	"github.com/JakeFAU/bing-daily-crawler/internal/records/postgres"
	"github.com/JakeFAU/bing-daily-crawler/internal/schedule"
	"github.com/JakeFAU/bing-daily-crawler/internal/storage/gcs"
	"github.com/JakeFAU/bing-daily-crawler/internal/storage/local"
	"github.com/JakeFAU/bing-daily-crawler/internal/storage/memory"
	"github.com/JakeFAU/bing-daily-crawler/internal/telegram"
	telegrammemory "github.com/JakeFAU/bing-daily-crawler/internal/telegram/memory"
)

// MetricsJob names the Pushgateway job.
const MetricsJob = "bing_daily"

type closer interface {
	Close() error
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

// App holds all the shared, long-lived services for the application.
// It is built once at startup from an explicit Config and handed to the
// command that runs the pipeline.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    *system.Clock
	location *time.Location
	pipeline *pipeline.Pipeline
	metrics  *http.Server
	closers  []closer
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// New creates the App. It fails fast when a configured backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: system.New()}
	metrics.Init()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a.location = loc

	httpClient := &http.Client{Timeout: cfg.Timeout()}
	client := bing.NewClient(bing.ClientConfig{
		Host:      cfg.Bing.Host,
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.Timeout(),
		Retry:     cfg.RetryPolicy(),
	}, httpClient, logger.Named("bing"))

	blobs, err := a.blobStore(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	assets := downloader.New(client, blobs, sha256.New(), downloader.Config{
		Host:   cfg.Bing.Host,
		Prefix: cfg.Storage.Prefix,
	}, logger.Named("downloader"))

	sink, err := a.sink(httpClient)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize messaging: %w", err)
	}
	pub := publisher.New(sink, publisher.Config{
		MainChatID:    cfg.Telegram.MainChannelID,
		ArchiveChatID: cfg.Telegram.ArchiveChannelID,
		ArchiveLink:   cfg.Telegram.ArchiveLink,
	}, logger.Named("publisher"))

	store, err := a.recordStore(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize records: %w", err)
	}

	notifier, err := a.notifier(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	a.pipeline = pipeline.New(client, assets, pub, store, notifier, a.clock, uuid.New(), pipeline.Config{
		PrimaryLocale:   cfg.Bing.PrimaryLocale,
		SecondaryLocale: cfg.Bing.SecondaryLocale,
		Location:        loc,
		Topic:           cfg.PubSub.Topic,
	}, logger.Named("pipeline"))

	if cfg.Metrics.ListenAddr != "" {
		a.serveMetrics(cfg.Metrics.ListenAddr)
	}

	logger.Info("application services initialized",
		zap.String("storage", a.storageProvider()),
		zap.Bool("dry_run", cfg.DryRun),
		zap.Bool("postgres", cfg.Records.PostgresDSN != ""),
		zap.String("pubsub_topic", cfg.PubSub.Topic))
	return a, nil
}

func (a *App) storageProvider() string {
	if a.cfg.DryRun {
		return config.ProviderMemory
	}
	return a.cfg.Storage.Provider
}

func (a *App) blobStore(ctx context.Context) (bing.BlobStore, error) {
	switch a.storageProvider() {
	case config.ProviderGCS:
		store, err := gcs.Dial(ctx, gcs.Config{
			Bucket:       a.cfg.Storage.GCSBucket,
			Prefix:       a.cfg.Storage.GCSPrefix,
			CacheControl: a.cfg.Storage.CacheControl,
		}, a.logger.Named("gcs"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		return store, nil
	case config.ProviderMemory:
		return memory.NewBlobStore(), nil
	case config.ProviderLocal:
		return local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
}

func (a *App) sink(httpClient *http.Client) (bing.Sink, error) {
	if a.cfg.DryRun {
		a.logger.Info("dry run: messages are recorded, not sent")
		return telegrammemory.New(), nil
	}
	for _, id := range []string{a.cfg.Telegram.MainChannelID, a.cfg.Telegram.ArchiveChannelID} {
		if _, err := telegram.ParseChatID(id); err != nil {
			return nil, err
		}
	}
	return telegram.New(telegram.Config{
		APIBase:       a.cfg.Telegram.APIBase,
		Token:         a.cfg.Telegram.BotToken,
		Timeout:       a.cfg.Timeout(),
		RatePerSecond: a.cfg.Telegram.RatePerSecond,
	}, httpClient, a.logger.Named("telegram"))
}

func (a *App) recordStore(ctx context.Context) (bing.RecordStore, error) {
	dir := a.cfg.Records.Dir
	if !filepath.IsAbs(dir) && a.cfg.Storage.Provider == config.ProviderLocal {
		dir = filepath.Join(a.cfg.Storage.BaseDir, dir)
	}
	files, err := jsonfile.New(dir)
	if err != nil {
		return nil, err
	}
	stores := records.Multi{files}

	if a.cfg.Records.PostgresDSN != "" {
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:   a.cfg.Records.PostgresDSN,
			Table: a.cfg.Records.PostgresTable,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeFunc(func() error { pg.Close(); return nil }))
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		stores = append(stores, pg)
	}
	return stores, nil
}

func (a *App) notifier(ctx context.Context) (bing.Notifier, error) {
	if a.cfg.PubSub.Topic == "" {
		return nil, nil
	}
	if a.cfg.DryRun {
		return notifymemory.New(), nil
	}
	n, err := notifypubsub.Dial(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, n)
	return n, nil
}

func (a *App) serveMetrics(addr string) {
	a.metrics = &http.Server{Addr: addr, Handler: a.metricsRouter(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info("starting metrics server", zap.String("addr", addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

func (a *App) metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Metrics, middleware.Logging(a.logger.Named("http")))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Run optionally waits for the scheduled time, then executes one pipeline run.
func (a *App) Run(ctx context.Context) (bing.DayRecord, error) {
	if a.cfg.Schedule.Wait {
		target, err := schedule.NextRunAt(a.clock.Now(), a.cfg.Schedule.At, a.location)
		if err != nil {
			return bing.DayRecord{}, err
		}
		if err := schedule.WaitUntil(ctx, a.clock, target, a.cfg.Poll(), a.logger.Named("schedule")); err != nil {
			return bing.DayRecord{}, err
		}
	}

	record, err := a.pipeline.Run(ctx)

	if url := a.cfg.Metrics.PushgatewayURL; url != "" {
		if pushErr := metrics.Push(url, MetricsJob); pushErr != nil {
			a.logger.Warn("metrics push failed", zap.Error(pushErr))
		}
	}
	return record, err
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn("error stopping metrics server", zap.Error(err))
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	// Best effort; syncing stderr fails on some platforms.
	_ = a.logger.Sync()
}
