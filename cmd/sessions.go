package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shardgate/internal/sessions"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect or clear persisted gateway sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the resume state stored for each shard",
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

		states, err := sessions.NewStore(database).List(context.Background())
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Println("No stored sessions.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SHARD\tSESSION\tSEQ\tUPDATED")
		for _, st := range states {
			seq := "-"
			if st.Seq != nil {
				seq = strconv.FormatInt(*st.Seq, 10)
			}
			fmt.Fprintf(tw, "%d/%d\t%s\t%s\t%s\n",
				st.ShardID, st.ShardCount, st.SessionID, seq, st.UpdatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every stored session so shards identify fresh on next run",
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

		n, err := sessions.NewStore(database).Clear(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d session(s).\n", n)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}
