package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs one crawl and publish cycle",
		Long: `Fetches today's metadata, downloads the assets, publishes them and
persists the day record. With --wait it first sleeps until the configured
time of day. A failed publish still persists the record but exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: runCommand,
	}
}

func runCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	record, err := appInstance.Run(cmd.Context())
	if err != nil {
		// PersistentPostRun is skipped when RunE fails.
		appInstance.Close()
		return err
	}
	appInstance.Logger().Info("run command finished",
		zap.String("date", record.Date),
		zap.String("name", record.Name),
		zap.Bool("published", record.Published))
	return nil
}
