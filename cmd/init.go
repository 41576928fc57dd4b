package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shardgate/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize shardgate configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the bot and writes the file named by --config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
