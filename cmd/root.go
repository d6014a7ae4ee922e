// Package cmd defines and implements the CLI commands for the bingcrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/bing-daily-crawler/internal/app"
	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
	"github.com/JakeFAU/bing-daily-crawler/internal/config"
	"github.com/JakeFAU/bing-daily-crawler/internal/logging"
)

var (
	cfgFile string
	envFile string
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	Logger() *zap.Logger
	Run(ctx context.Context) (bing.DayRecord, error)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command. Running it without a
// subcommand performs one crawl, same as "run".
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bingcrawler",
		Short: "Archives and publishes the Bing image of the day.",
		Long: `bingcrawler fetches the Bing image-of-the-day metadata, downloads every
resolution, posts the files and a captioned cover to Telegram channels,
and writes a JSON record of the day.`,
		SilenceUsage: true,

		// Builds the application once flags are parsed and before RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{
				ConfigFile: cfgFile,
				EnvFile:    envFile,
				Flags:      cmd.Flags(),
			})
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},

		RunE: runCommand,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "optional YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file read for variables missing from the environment")
	flags.Bool("wait", false, "sleep until the scheduled time before crawling")
	flags.String("at", "", "scheduled time of day as HH:MM in schedule.timezone")
	flags.Bool("dry-run", false, "store assets in memory and record messages instead of sending them")

	cmd.AddCommand(newRunCmd(), newVersionCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the run.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
