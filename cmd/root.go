package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shardgate/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "shardgate",
	Short: "Sharded gateway client and slash-command dispatcher",
	Long: `shardgate keeps a bot connected to the platform's realtime gateway across
any number of shards, resuming sessions after drops, and dispatches
slash-command interactions to registered handlers within their reply
deadlines.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
