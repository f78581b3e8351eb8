package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/h0rv/brickhunt/internal/ledger"
	"github.com/h0rv/brickhunt/internal/recents"
	"github.com/spf13/cobra"
)

func newRecentCmd() *cobra.Command {
	var forget string

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := recents.New(cfg.RecentsPath, slog.Default())
			if forget != "" {
				cache.Remove(forget)
			}

			sessions := cache.List()
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent sessions.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SET\tNAME\tFOUND\tOPENED\tTOKEN")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%d/%d (%d%%)\t%s\t%s\n",
					s.SetNum, s.SetName, s.Found, s.Needed, ledger.Progress(s.Needed, s.Found),
					s.LastOpened.Local().Format("2006-01-02 15:04"), s.Token)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&forget, "forget", "", "Remove the session with this token from the list")

	return cmd
}
