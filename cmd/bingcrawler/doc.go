// Package main hosts the bingcrawler entrypoint.
//
// Architecture overview:
//   - Metadata: internal/bing.Client fetches the image-of-the-day envelope for the primary locale (fatal on failure)
//     and a secondary locale (best effort), retrying each request up to four times with 0.5-1s jitter. Merge keys the
//     day on the primary urlbase's id parameter.
//   - Assets: internal/downloader fetches all seven resolutions. A 404 omits that resolution without retrying. The UHD
//     file is decoded to record its pixel size, and every file lands in the configured BlobStore (local/GCS/memory)
//     under a dated path plus the latest UHD.jpg and 1080p.jpg aliases.
//   - Publishing: internal/publisher posts the archive documents, the story text and the cover photo through a
//     Telegram Bot API client, rate limited per chat. Archive failures are recorded and skipped; story and cover
//     failures mark the day unpublished.
//   - Persistence & fanout: the DayRecord is written as indented JSON per date and as latest.json, optionally upserted
//     into Postgres, and a compact Pub/Sub event is published when a topic is configured.
//   - Configuration & plumbing: Viper reads BING_* env vars (plus the legacy BOTTOKEN, CHANNELIDMAIN and
//     CHANNELIDARCHIVE names), an optional YAML file and a dotenv fallback; zap provides structured logging;
//     Prometheus metrics are served on metrics.listen_addr or pushed to a Pushgateway after the run.
//
// Operational notes:
//   - One process performs one run. --wait sleeps until schedule.at in schedule.timezone; starting late runs at once.
//   - A failed publish still persists the record, then exits non-zero so the scheduler notices.
//   - --dry-run keeps assets in memory and records Telegram calls instead of sending them.
//
// Quick checklist:
//   - Configure env vars: BOTTOKEN (or BING_TELEGRAM_BOT_TOKEN), CHANNELIDMAIN, CHANNELIDARCHIVE, BING_STORAGE_*,
//     BING_RECORDS_POSTGRES_DSN, BING_PUBSUB_PROJECT_ID and BING_PUBSUB_TOPIC as needed.
//   - Run locally: go run ./cmd/bingcrawler --dry-run (or with a .env file in the working directory).
package main
