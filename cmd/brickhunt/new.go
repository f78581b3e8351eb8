package main

import (
	"fmt"
	"log/slog"

	"github.com/h0rv/brickhunt/internal/client"
	"github.com/h0rv/brickhunt/internal/recents"
	"github.com/h0rv/brickhunt/internal/session"
	"github.com/spf13/cobra"
)

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <set>",
		Short: "Create a session for a set",
		Long: `Asks the server to create a session for a set and prints the session
token and the share link. A set number without a version gets "-1".`,
		Example: `  brickhunt new 6020
  brickhunt new 10497-1 --server https://bricks.example`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := client.New(cfg.Server)
			if err != nil {
				return err
			}

			resp, err := c.CreateSession(ctx, args[0])
			if err != nil {
				return err
			}

			set := resp.Session.Set
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%d)\n", set.SetNum, set.Name, set.Year)
			fmt.Fprintf(out, "token: %s\n", resp.Token)
			fmt.Fprintf(out, "share: %s\n", resp.ShareURL)

			// Remember it for the picker; the summary needs the loaded ledger
			sess, err := session.Open(ctx, c, resp.Token, slog.Default())
			if err != nil {
				slog.Debug("not caching new session", "err", err)
				return nil
			}
			recents.New(cfg.RecentsPath, slog.Default()).Upsert(sess.Summary())
			return nil
		},
	}
}
