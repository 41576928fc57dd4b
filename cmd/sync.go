package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shardgate/internal/progress"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Overwrite the platform's registered commands with the local ones",
	Long: `Bulk-overwrites the command set of every configured scope (global and
per guild) with the commands registered in this process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		bot, _, _, err := newBot(cfg, database, logger)
		if err != nil {
			return err
		}

		results, err := bot.SyncCommands(context.Background(), progress.NewReporter("syncing commands"))
		for _, res := range results {
			if res.Err != nil {
				fmt.Fprintf(os.Stderr, "  %-24s failed: %v\n", res.Scope, res.Err)
				continue
			}
			if res.Commands > 0 || res.Scope.GuildID() == "" {
				fmt.Printf("  %-24s %d command(s)\n", res.Scope, res.Commands)
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
