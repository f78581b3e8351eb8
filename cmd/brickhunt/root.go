package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/h0rv/brickhunt/internal/client"
	"github.com/h0rv/brickhunt/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Persistent flags
	configFlag   string
	serverFlag   string
	logLevelFlag string

	// cfg is loaded before every command runs
	cfg config.Config
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brickhunt",
		Short: "Check off the parts of a LEGO set together",
		Long: `brickhunt is a shared part checklist for sorting a LEGO set.

One person runs the server; everyone else opens the same session from a
share link and sees each other's finds live.

Configuration is read from the config file, then BRICKHUNT_* and
REBRICKABLE_API_KEY environment variables (a .env file is loaded if present),
then flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			loaded, err := config.Load(configFlag)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("server") {
				loaded.Server = serverFlag
			}
			if cmd.Flags().Changed("log-level") {
				loaded.LogLevel = logLevelFlag
			}
			cfg = loaded

			slog.SetDefault(newLogger(os.Stderr, cfg.LogLevel))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configFlag, "config", config.DefaultPath(), "Config file")
	cmd.PersistentFlags().StringVar(&serverFlag, "server", "", "brickhunt server URL (default from config, http://localhost:8787)")
	cmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(
		newServeCmd(),
		newNewCmd(),
		newOpenCmd(),
		newWatchCmd(),
		newRecentCmd(),
	)

	return cmd
}

// newLogger returns a text logger at the named level; unknown names mean info.
func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// sessionArg resolves a token or share link argument to a client and token.
// A share link points the client at the server that issued it.
func sessionArg(arg string) (*client.Client, string, error) {
	server := cfg.Server
	if fromLink, ok := client.ServerFromLink(arg); ok {
		server = fromLink
	}

	c, err := client.New(server)
	if err != nil {
		return nil, "", err
	}

	token := client.ParseToken(arg)
	if token == "" {
		return nil, "", fmt.Errorf("no session token in %q", arg)
	}
	return c, token, nil
}
