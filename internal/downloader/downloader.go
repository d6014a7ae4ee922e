// Package downloader fetches every resolution of the day's image and stores it.
package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
	"github.com/JakeFAU/bing-daily-crawler/internal/metrics"
)

// Config controls where assets come from and where they are written.
type Config struct {
	// Host is prefixed to urlbase to form asset URLs.
	Host string
	// Prefix is the blob path root; "img" yields img/<date>/ and img/latest/.
	Prefix string
}

// Report summarizes one DownloadAll call.
type Report struct {
	Attempted []bing.Resolution
	Succeeded []bing.Resolution
	// Absent lists resolutions the source does not offer (HTTP 404).
	Absent []bing.Resolution
	// Failed lists resolutions omitted after exhausting retries or failing validation.
	Failed []bing.Resolution
	Bytes  uint64
}

// Omitted returns every resolution missing from the record.
func (r Report) Omitted() []bing.Resolution {
	out := make([]bing.Resolution, 0, len(r.Absent)+len(r.Failed))
	out = append(out, r.Absent...)
	return append(out, r.Failed...)
}

// Downloader implements the asset stage.
type Downloader struct {
	fetcher bing.AssetFetcher
	blobs   bing.BlobStore
	hasher  bing.Hasher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Downloader.
func New(fetcher bing.AssetFetcher, blobs bing.BlobStore, hasher bing.Hasher, cfg Config, logger *zap.Logger) *Downloader {
	if cfg.Host == "" {
		cfg.Host = bing.DefaultHost
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "img"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		fetcher: fetcher,
		blobs:   blobs,
		hasher:  hasher,
		cfg:     cfg,
		logger:  logger,
	}
}

// DatedPath is the blob path of one resolution for a day.
func (d *Downloader) DatedPath(date, name string, res bing.Resolution) string {
	return path.Join(strings.Trim(d.cfg.Prefix, "/"), date, fmt.Sprintf("%s_%s.jpg", name, res))
}

// LatestPath is the blob path of an overwritten alias.
func (d *Downloader) LatestPath(alias string) string {
	return path.Join(strings.Trim(d.cfg.Prefix, "/"), "latest", alias)
}

// DownloadAll fetches each resolution in order and returns a copy of record
// with URLs, Checksums and RawSize filled in. Missing or failing resolutions
// are omitted. Only a blob store failure aborts, wrapped as ErrPersistence.
func (d *Downloader) DownloadAll(ctx context.Context, record bing.DayRecord) (bing.DayRecord, Report, error) {
	out := record.Clone()
	if out.URLs == nil {
		out.URLs = map[bing.Resolution]string{}
	}
	if out.Checksums == nil {
		out.Checksums = map[bing.Resolution]string{}
	}
	var report Report

	for _, res := range bing.Resolutions {
		if err := ctx.Err(); err != nil {
			return out, report, fmt.Errorf("download interrupted: %w", err)
		}
		report.Attempted = append(report.Attempted, res)
		source := bing.AssetURL(d.cfg.Host, out.URLBase, res)
		logger := d.logger.With(zap.String("resolution", string(res)), zap.String("url", source))

		data, err := d.fetcher.FetchAsset(ctx, source)
		switch {
		case errors.Is(err, bing.ErrNotFoundAsset):
			logger.Info("resolution not offered")
			report.Absent = append(report.Absent, res)
			metrics.ObserveAsset(string(res), metrics.StatusAbsent, 0)
			continue
		case err != nil:
			logger.Warn("resolution omitted", zap.Error(err))
			report.Failed = append(report.Failed, res)
			metrics.ObserveAsset(string(res), metrics.StatusFailed, 0)
			continue
		}

		contentType, err := sniff(data)
		if err != nil {
			logger.Warn("resolution omitted", zap.Error(err))
			report.Failed = append(report.Failed, res)
			metrics.ObserveAsset(string(res), metrics.StatusFailed, len(data))
			continue
		}

		if res == bing.ReferenceResolution {
			if size, err := rawSize(data); err != nil {
				logger.Warn("could not decode reference image", zap.Error(err))
			} else {
				out.RawSize = size
			}
		}

		if err := d.store(ctx, d.DatedPath(out.Date, out.Name, res), contentType, data); err != nil {
			return out, report, err
		}
		if alias, ok := bing.LatestAliases[res]; ok {
			if err := d.store(ctx, d.LatestPath(alias), contentType, data); err != nil {
				return out, report, err
			}
		}

		if d.hasher != nil {
			sum, err := d.hasher.Hash(data)
			if err != nil {
				logger.Warn("hash failed", zap.Error(err))
			} else {
				out.Checksums[res] = sum
			}
		}

		out.URLs[res] = source
		report.Succeeded = append(report.Succeeded, res)
		report.Bytes += uint64(len(data))
		metrics.ObserveAsset(string(res), metrics.StatusOK, len(data))
		logger.Debug("resolution stored", zap.String("size", humanize.Bytes(uint64(len(data)))))
	}

	d.logger.Info("download finished",
		zap.String("date", out.Date),
		zap.String("name", out.Name),
		zap.Int("attempted", len(report.Attempted)),
		zap.Int("succeeded", len(report.Succeeded)),
		zap.Strings("omitted", resolutionStrings(report.Omitted())),
		zap.String("raw_size", out.RawSize),
		zap.String("total", humanize.Bytes(report.Bytes)),
	)
	return out, report, nil
}

func (d *Downloader) store(ctx context.Context, blobPath, contentType string, data []byte) error {
	if _, err := d.blobs.PutObject(ctx, blobPath, contentType, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("store %s: %w: %w", blobPath, bing.ErrPersistence, err)
	}
	return nil
}

func sniff(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("unexpected content type %s", mt.String())
	}
	return mt.String(), nil
}

func rawSize(data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	return fmt.Sprintf("%dx%d", b.Dx(), b.Dy()), nil
}

func resolutionStrings(in []bing.Resolution) []string {
	out := make([]string, len(in))
	for i, r := range in {
		out[i] = string(r)
	}
	return out
}
