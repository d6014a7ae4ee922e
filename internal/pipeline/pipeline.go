// Package pipeline runs one daily crawl: fetch, merge, download, publish, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
	"github.com/JakeFAU/bing-daily-crawler/internal/downloader"
	"github.com/JakeFAU/bing-daily-crawler/internal/metrics"
	"github.com/JakeFAU/bing-daily-crawler/internal/notify"
)

// DateLayout keys records and blob partitions.
const DateLayout = "2006-01-02"

// AssetStage downloads every resolution of a record.
type AssetStage interface {
	DownloadAll(ctx context.Context, record bing.DayRecord) (bing.DayRecord, downloader.Report, error)
}

// PublishStage posts a record to the messaging channels.
type PublishStage interface {
	Publish(ctx context.Context, record bing.DayRecord) (bing.DayRecord, error)
}

// Config controls Pipeline behavior.
type Config struct {
	PrimaryLocale string
	// SecondaryLocale is optional; empty skips the second fetch.
	SecondaryLocale string
	// Location decides which calendar day a run belongs to.
	Location *time.Location
	// Topic receives a completion event when a Notifier is configured.
	Topic string
}

// Pipeline wires the stages together. Each stage takes the previous stage's
// record and returns an updated copy.
type Pipeline struct {
	metadata  bing.MetadataFetcher
	assets    AssetStage
	publisher PublishStage
	records   bing.RecordStore
	notifier  bing.Notifier
	clock     bing.Clock
	ids       bing.IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Pipeline. notifier may be nil.
func New(
	metadata bing.MetadataFetcher,
	assets AssetStage,
	publisher PublishStage,
	records bing.RecordStore,
	notifier bing.Notifier,
	clock bing.Clock,
	ids bing.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.PrimaryLocale == "" {
		cfg.PrimaryLocale = "en-US"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		metadata:  metadata,
		assets:    assets,
		publisher: publisher,
		records:   records,
		notifier:  notifier,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one crawl and returns the final record. A primary fetch,
// merge, download storage or persistence failure aborts the run. A publish
// failure does not stop persistence, but it is still returned so the caller
// exits non-zero.
func (p *Pipeline) Run(ctx context.Context) (bing.DayRecord, error) {
	started := p.clock.Now()
	runID, err := p.ids.NewID()
	if err != nil {
		return bing.DayRecord{}, fmt.Errorf("generate run id: %w", err)
	}
	date := started.In(p.cfg.Location).Format(DateLayout)
	logger := p.logger.With(zap.String("run_id", runID), zap.String("date", date))
	logger.Info("run started")

	record, err := p.run(ctx, logger, runID, date)
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusFailed
	}
	finished := p.clock.Now()
	metrics.ObserveRun(status, finished.Sub(started), finished)

	if err != nil {
		logger.Error("run failed", zap.Error(err), zap.Bool("published", record.Published))
		return record, err
	}
	logger.Info("run finished",
		zap.String("name", record.Name),
		zap.Int("assets", len(record.URLs)),
		zap.Duration("duration", finished.Sub(started)))
	return record, nil
}

func (p *Pipeline) run(ctx context.Context, logger *zap.Logger, runID, date string) (bing.DayRecord, error) {
	primary, err := p.metadata.FetchMetadata(ctx, p.cfg.PrimaryLocale)
	if err != nil {
		return bing.DayRecord{}, fmt.Errorf("primary metadata: %w", err)
	}

	var secondary *bing.Envelope
	if p.cfg.SecondaryLocale != "" {
		env, err := p.metadata.FetchMetadata(ctx, p.cfg.SecondaryLocale)
		if err != nil {
			logger.Warn("secondary metadata unavailable, continuing without it",
				zap.String("locale", p.cfg.SecondaryLocale), zap.Error(err))
		} else {
			secondary = &env
		}
	}

	record, warnings, err := bing.Merge(date, primary, secondary)
	if err != nil {
		return bing.DayRecord{}, fmt.Errorf("merge metadata: %w", err)
	}
	for _, w := range warnings {
		logger.Warn("merge warning", zap.String("warning", w))
	}
	record.RunID = runID
	logger.Info("metadata merged",
		zap.String("name", record.Name),
		zap.Bool("secondary", secondary != nil))

	record, _, err = p.assets.DownloadAll(ctx, record)
	if err != nil {
		return record, fmt.Errorf("download assets: %w", err)
	}

	record, publishErr := p.publisher.Publish(ctx, record)
	if publishErr != nil {
		logger.Error("publish incomplete, persisting what was published", zap.Error(publishErr))
	}
	logger.Info("publish report",
		zap.Int("archive_posts", len(record.Telegram.Archive)),
		zap.Int64("story_message_id", record.Telegram.StoryMessageID),
		zap.Int64("photo_message_id", record.Telegram.PhotoMessageID),
		zap.Strings("errors", record.PublishErrors))

	if err := p.records.Save(ctx, record); err != nil {
		return record, errors.Join(publishErr, fmt.Errorf("persist record: %w", err))
	}
	logger.Info("record persisted")

	p.notify(ctx, logger, record)

	if publishErr != nil {
		return record, fmt.Errorf("publish: %w", publishErr)
	}
	return record, nil
}

func (p *Pipeline) notify(ctx context.Context, logger *zap.Logger, record bing.DayRecord) {
	if p.notifier == nil || p.cfg.Topic == "" {
		return
	}
	id, err := p.notifier.Publish(ctx, p.cfg.Topic, notify.NewRunCompleted(record, p.clock.Now()))
	if err != nil {
		logger.Warn("completion event not published", zap.String("topic", p.cfg.Topic), zap.Error(err))
		return
	}
	logger.Debug("completion event published", zap.String("message_id", id))
}
