// Package publisher posts a downloaded DayRecord to the messaging channels.
//
// Publishing runs in three ordered phases. The archive phase sends every
// downloaded resolution as a document to the archive channel. The story phase
// sends the captions and description as a text post. The cover phase sends the
// preferred resolution as a photo to the main channel, with a caption linking
// back to the story post and to selected archive documents.
package publisher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
	"github.com/JakeFAU/bing-daily-crawler/internal/metrics"
)

// DefaultArchiveLink is the public link base of the archive channel.
const DefaultArchiveLink = "https://t.me/BingImageArchive"

// Phase names used in logs and metrics.
const (
	PhaseArchive = "archive"
	PhaseStory   = "story"
	PhaseCover   = "cover"
)

// Config carries the channel identifiers the publisher posts to.
type Config struct {
	MainChatID    string
	ArchiveChatID string
	// ArchiveLink is prefixed to message IDs to build backlinks.
	ArchiveLink string
}

// Publisher implements the publish stage.
type Publisher struct {
	sink   bing.Sink
	cfg    Config
	logger *zap.Logger
}

// New constructs a Publisher.
func New(sink bing.Sink, cfg Config, logger *zap.Logger) *Publisher {
	if cfg.ArchiveLink == "" {
		cfg.ArchiveLink = DefaultArchiveLink
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{sink: sink, cfg: cfg, logger: logger}
}

// Publish runs the three phases and returns a copy of record carrying every
// identifier the sink assigned. A failed archive post is recorded in
// PublishErrors and its backlink is skipped. A failed story or cover post
// stops publishing and is returned wrapped in bing.ErrPublish together with
// the record accumulated so far. Calls are not retried since the sink does
// not deduplicate posts.
func (p *Publisher) Publish(ctx context.Context, record bing.DayRecord) (bing.DayRecord, error) {
	out := record.Clone()
	out.Published = false
	out.PublishErrors = nil
	if out.Telegram.Archive == nil {
		out.Telegram.Archive = map[bing.Resolution]bing.ArchiveRef{}
	}

	coverURL, ok := out.CoverURL()
	if !ok {
		return out, fmt.Errorf("%w: no downloaded assets to publish", bing.ErrPublish)
	}

	p.archive(ctx, &out)

	storyID, err := p.sink.SendMessage(ctx, p.cfg.ArchiveChatID, StoryText(out))
	if err != nil {
		return p.fail(out, PhaseStory, err)
	}
	out.Telegram.StoryMessageID = storyID
	metrics.ObservePublish(PhaseStory, metrics.StatusOK)
	p.logger.Info("story posted", zap.Int64("message_id", storyID))

	photo, err := p.sink.SendPhoto(ctx, p.cfg.MainChatID, coverURL, CoverCaption(out, p.cfg.ArchiveLink))
	if err != nil {
		return p.fail(out, PhaseCover, err)
	}
	out.Telegram.PhotoMessageID = photo.MessageID
	out.Telegram.Photo = photo.Photo
	metrics.ObservePublish(PhaseCover, metrics.StatusOK)
	p.logger.Info("cover posted", zap.Int64("message_id", photo.MessageID), zap.Int("sizes", len(photo.Photo)))

	out.Published = len(out.PublishErrors) == 0
	if !out.Published {
		p.logger.Warn("published with missing archive documents", zap.Strings("errors", out.PublishErrors))
	}
	return out, nil
}

func (p *Publisher) archive(ctx context.Context, out *bing.DayRecord) {
	for _, res := range bing.Resolutions {
		source, ok := out.URLs[res]
		if !ok {
			continue
		}
		ref, err := p.sink.SendDocument(ctx, p.cfg.ArchiveChatID, source, ArchiveCaption(*out, res))
		if err != nil {
			metrics.ObservePublish(PhaseArchive, metrics.StatusFailed)
			p.logger.Warn("archive post failed, skipping its backlink",
				zap.String("resolution", string(res)), zap.Error(err))
			out.PublishErrors = append(out.PublishErrors, fmt.Sprintf("%s %s: %v", PhaseArchive, res, err))
			continue
		}
		out.Telegram.Archive[res] = ref
		metrics.ObservePublish(PhaseArchive, metrics.StatusOK)
		p.logger.Debug("archive posted",
			zap.String("resolution", string(res)),
			zap.Int64("message_id", ref.MessageID),
			zap.String("file_id", ref.FileID))
	}
}

func (p *Publisher) fail(out bing.DayRecord, phase string, err error) (bing.DayRecord, error) {
	metrics.ObservePublish(phase, metrics.StatusFailed)
	out.PublishErrors = append(out.PublishErrors, fmt.Sprintf("%s: %v", phase, err))
	if errors.Is(err, bing.ErrPublish) {
		return out, fmt.Errorf("%s phase: %w", phase, err)
	}
	return out, fmt.Errorf("%s phase: %w: %w", phase, bing.ErrPublish, err)
}
