package main

import (
	"github.com/spf13/cobra"

	"github.com/serendipitylabs/serendipity/internal/logging"
	"github.com/serendipitylabs/serendipity/internal/svc"
	"go.uber.org/zap"
)

// Shared CLI flags
var (
	dataDir      string
	settingsPath string
	verbose      bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serendipity",
		Short: "Serendipity - personal discovery engine",
		Long: `Serendipity surfaces content you would not have found on your own,
steered by your profile document and the feedback you give each batch.

Run 'serendipity serve' to start the local API, or 'serendipity discover'
for a one-off round in the terminal.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: ~/.serendipity)")
	cmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "settings file (default: <data-dir>/settings.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(discoverCmd())
	cmd.AddCommand(settingsCmd())
	cmd.AddCommand(historyCmd())
	return cmd
}

// newServiceContext builds the dependency bundle from the shared flags.
// Callers own the returned context and must Close it.
func newServiceContext() (*svc.ServiceContext, *zap.Logger, error) {
	logger := logging.New(verbose)
	svcCtx, err := svc.NewServiceContext(svc.Config{
		BaseDir:      dataDir,
		SettingsPath: settingsPath,
	}, logger)
	if err != nil {
		return nil, logger, err
	}
	return svcCtx, logger, nil
}
