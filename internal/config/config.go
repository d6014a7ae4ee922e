// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/bing-daily-crawler/internal/retry"
	"github.com/JakeFAU/bing-daily-crawler/internal/schedule"
)

// EnvPrefix namespaces environment overrides, e.g. BING_SCHEDULE_WAIT.
const EnvPrefix = "BING"

// Storage providers.
const (
	ProviderLocal  = "local"
	ProviderGCS    = "gcs"
	ProviderMemory = "memory"
)

// legacyEnv maps keys to the variable names deployments already export.
var legacyEnv = map[string]string{
	"telegram.bot_token":          "BOTTOKEN",
	"telegram.main_channel_id":    "CHANNELIDMAIN",
	"telegram.archive_channel_id": "CHANNELIDARCHIVE",
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"wait":    "schedule.wait",
	"at":      "schedule.at",
	"dry-run": "dry_run",
}

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Bing     BingConfig     `mapstructure:"bing"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Records  RecordsConfig  `mapstructure:"records"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	// DryRun swaps the messaging sink and blob store for in-memory fakes.
	DryRun bool `mapstructure:"dry_run"`
}

// BingConfig selects the image source and locales.
type BingConfig struct {
	Host            string `mapstructure:"host"`
	PrimaryLocale   string `mapstructure:"primary_locale"`
	SecondaryLocale string `mapstructure:"secondary_locale"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// RetryConfig bounds metadata and asset retries.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	MinDelayMs  int `mapstructure:"min_delay_ms"`
	MaxDelayMs  int `mapstructure:"max_delay_ms"`
}

// StorageConfig sets where image bytes are written.
type StorageConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseDir      string `mapstructure:"base_dir"`
	Prefix       string `mapstructure:"prefix"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	GCSPrefix    string `mapstructure:"gcs_prefix"`
	CacheControl string `mapstructure:"cache_control"`
}

// RecordsConfig controls DayRecord persistence.
type RecordsConfig struct {
	Dir           string `mapstructure:"dir"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
}

// TelegramConfig holds bot credentials and channel identifiers.
type TelegramConfig struct {
	BotToken         string  `mapstructure:"bot_token"`
	MainChannelID    string  `mapstructure:"main_channel_id"`
	ArchiveChannelID string  `mapstructure:"archive_channel_id"`
	APIBase          string  `mapstructure:"api_base"`
	ArchiveLink      string  `mapstructure:"archive_link"`
	RatePerSecond    float64 `mapstructure:"rate_per_second"`
}

// ScheduleConfig controls the optional wait before a run.
type ScheduleConfig struct {
	Wait        bool   `mapstructure:"wait"`
	At          string `mapstructure:"at"`
	Timezone    string `mapstructure:"timezone"`
	PollSeconds int    `mapstructure:"poll_seconds"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls Prometheus exposure.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	ListenAddr     string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// LoadOptions tells Load where to look besides the environment.
type LoadOptions struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string
	// EnvFile is a dotenv file consulted for variables the environment lacks.
	// A missing file is ignored.
	EnvFile string
	// Flags, when set, overrides keys for the flags that were changed.
	Flags *pflag.FlagSet
}

// Load builds a Config from flags, environment, dotenv file and disk, in that
// order of precedence.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	flags := changedFlags(opts.Flags)
	if err := applyEnvFile(v, opts.EnvFile, flags); err != nil {
		return Config{}, err
	}
	for key, f := range flags {
		if err := v.BindPFlag(key, f); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bing.host", "https://www.bing.com")
	v.SetDefault("bing.primary_locale", "en-US")
	v.SetDefault("bing.secondary_locale", "zh-CN")
	v.SetDefault("http.timeout_seconds", 12)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.min_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 1000)
	v.SetDefault("storage.provider", ProviderLocal)
	v.SetDefault("storage.base_dir", ".")
	v.SetDefault("storage.prefix", "img")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_prefix", "")
	v.SetDefault("storage.cache_control", "public, max-age=3600")
	v.SetDefault("records.dir", "data")
	v.SetDefault("records.postgres_dsn", "")
	v.SetDefault("records.postgres_table", "day_records")
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.main_channel_id", "")
	v.SetDefault("telegram.archive_channel_id", "")
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.archive_link", "https://t.me/BingImageArchive")
	v.SetDefault("telegram.rate_per_second", 1.0)
	v.SetDefault("schedule.wait", false)
	v.SetDefault("schedule.at", "00:01")
	v.SetDefault("schedule.timezone", "Asia/Shanghai")
	v.SetDefault("schedule.poll_seconds", 30)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("dry_run", false)
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// changedFlags returns the flags set on the command line, keyed by the
// configuration key they override.
func changedFlags(fs *pflag.FlagSet) map[string]*pflag.Flag {
	out := map[string]*pflag.Flag{}
	if fs == nil {
		return out
	}
	for flag, key := range flagKeys {
		if f := fs.Lookup(flag); f != nil && f.Changed {
			out[key] = f
		}
	}
	return out
}

// applyEnvFile copies dotenv values into v for keys whose variables are not
// already exported and that no changed flag overrides. viper.Set outranks
// flags, so those keys must be left alone. The process environment is left
// untouched.
func applyEnvFile(v *viper.Viper, path string, flags map[string]*pflag.Flag) error {
	if path == "" {
		return nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		names := []string{envName(key)}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		if _, ok := flags[key]; ok || exported(names) {
			continue
		}
		for _, name := range names {
			if val, ok := values[name]; ok {
				v.Set(key, val)
				break
			}
		}
	}
	return nil
}

func exported(names []string) bool {
	for _, name := range names {
		if _, ok := os.LookupEnv(name); ok {
			return true
		}
	}
	return false
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Bing.PrimaryLocale == "" {
		return fmt.Errorf("bing.primary_locale is required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.MinDelayMs < 0 || c.Retry.MaxDelayMs < c.Retry.MinDelayMs {
		return fmt.Errorf("retry delays must satisfy 0 <= min_delay_ms <= max_delay_ms")
	}
	switch c.Storage.Provider {
	case ProviderLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local provider")
		}
	case ProviderGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs provider")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("storage.provider must be one of local, gcs, memory; got %q", c.Storage.Provider)
	}
	if c.Records.Dir == "" {
		return fmt.Errorf("records.dir is required")
	}
	if !c.DryRun {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token (or BOTTOKEN) is required")
		}
		if c.Telegram.MainChannelID == "" || c.Telegram.ArchiveChannelID == "" {
			return fmt.Errorf("telegram.main_channel_id and telegram.archive_channel_id (or CHANNELIDMAIN, CHANNELIDARCHIVE) are required")
		}
	}
	if c.Telegram.RatePerSecond < 0 {
		return fmt.Errorf("telegram.rate_per_second must be >= 0")
	}
	if _, _, err := schedule.ParseAt(c.Schedule.At); err != nil {
		return fmt.Errorf("schedule.at: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic is set")
	}
	return nil
}

// RetryPolicy converts the retry settings.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		MinDelay:    time.Duration(c.Retry.MinDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
	}
}

// Timeout is the per-request HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Location resolves schedule.timezone. Empty means the host's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

// Poll is the wait loop interval.
func (c Config) Poll() time.Duration {
	if c.Schedule.PollSeconds <= 0 {
		return schedule.DefaultPoll
	}
	return time.Duration(c.Schedule.PollSeconds) * time.Second
}
