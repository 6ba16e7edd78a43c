package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rhaynes/electrack/internal/config"
	"github.com/rhaynes/electrack/internal/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "electrack",
	Short: "UK election results tracker",
	Long: `Electrack syncs UK election data from the Democracy Club APIs into
PostgreSQL and serves it back out over HTTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logging.Init(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
