package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shardgate/internal/audit"
)

var (
	auditLimit       int
	auditInteraction string
	auditOlderThan   time.Duration
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show or prune the interaction audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		entries, err := audit.NewStore(database).Query(context.Background(), audit.QueryFilter{
			InteractionID: auditInteraction,
			Limit:         auditLimit,
		})
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tINTERACTION\tACTION\tCOMMAND\tUSER\tDETAIL")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Format(time.RFC3339), e.InteractionID, e.Action, e.CommandPath, e.UserID, e.Detail)
		}
		return tw.Flush()
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit entries older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		n, err := audit.NewStore(database).DeleteBefore(context.Background(), time.Now().Add(-auditOlderThan))
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d audit entries.\n", n)
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum entries to show")
	auditCmd.Flags().StringVar(&auditInteraction, "interaction", "", "only show entries of this interaction")
	auditPruneCmd.Flags().DurationVar(&auditOlderThan, "older-than", 30*24*time.Hour, "age of entries to delete")
	auditCmd.AddCommand(auditPruneCmd)
	rootCmd.AddCommand(auditCmd)
}
