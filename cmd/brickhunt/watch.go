package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/h0rv/brickhunt/internal/client"
	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/h0rv/brickhunt/internal/session"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <token|link>",
		Short: "Log live changes of a session",
		Long: `Subscribes to a session without the terminal UI and logs every change
a collaborator makes, with the running progress. Stops on Ctrl+C or when the
server closes the connection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := slog.Default()

			c, token, err := sessionArg(args[0])
			if err != nil {
				return err
			}

			sess, err := session.Open(ctx, c, token, logger)
			if err != nil {
				return err
			}
			sub, err := sess.Subscribe(ctx, client.NewChannel(c, logger))
			if err != nil {
				return err
			}
			defer func() { _ = sub.Close() }()

			needed, found, percent := sess.Progress()
			set := sess.Meta().Set
			logger.Info("Watching session", "set", set.SetNum, "name", set.Name, "found", found, "needed", needed, "percent", percent)

			sess.Reconciler().OnApplied = func(n domain.Notification) {
				item, err := sess.Ledger().Get(n.ItemID)
				if err != nil {
					return
				}
				needed, found, percent := sess.Progress()
				logger.Info("Item updated",
					"part", item.PartNum,
					"color", item.ColorName,
					"qty_found", item.QtyFound,
					"qty_needed", item.QtyNeeded,
					"progress", percent,
					"found", found,
					"needed", needed,
				)
			}

			// The reconciler is the only ledger writer from here on
			if err := sess.Reconciler().Run(ctx, sub.Notifications()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("Stopped watching")
			return nil
		},
	}
}
