package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/brickhunt/internal/client"
	"github.com/h0rv/brickhunt/internal/recents"
	"github.com/h0rv/brickhunt/internal/tui"
	"github.com/spf13/cobra"
)

func newOpenCmd() *cobra.Command {
	var (
		setFlag     string
		logFileFlag string
	)

	cmd := &cobra.Command{
		Use:   "open [token|link]",
		Short: "Open a session in the terminal UI",
		Long: `Opens the interactive checklist of a session. Without an argument the
recently opened sessions are listed.

Logs are written to the log file (see --log-file) since the terminal is
taken by the interface.`,
		Example: `  brickhunt open
  brickhunt open https://bricks.example/api/sessions/0b5e2f6a-...
  brickhunt open --set 6020-1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && setFlag != "" {
				return fmt.Errorf("--set creates a new session and cannot be combined with a token")
			}

			if cmd.Flags().Changed("log-file") {
				cfg.LogFile = logFileFlag
			}
			if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o750); err != nil {
				return fmt.Errorf("failed to create log dir: %w", err)
			}
			logFile, err := tea.LogToFile(cfg.LogFile, "brickhunt")
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer func() { _ = logFile.Close() }()
			logger := newLogger(logFile, cfg.LogLevel)

			var (
				c     *client.Client
				token string
			)
			if len(args) == 1 {
				c, token, err = sessionArg(args[0])
			} else {
				c, err = client.New(cfg.Server)
			}
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app := tui.NewAppModel(ctx, c, client.NewChannel(c, logger), recents.New(cfg.RecentsPath, logger), logger, token, setFlag)

			p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("program error: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&setFlag, "set", "", "Create a new session for this set and open it")
	cmd.Flags().StringVar(&logFileFlag, "log-file", "", "Log file (default from config)")

	return cmd
}
