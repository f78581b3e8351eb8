package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/h0rv/brickhunt/internal/auth"
	"github.com/h0rv/brickhunt/internal/rebrickable"
	"github.com/h0rv/brickhunt/internal/server"
	"github.com/h0rv/brickhunt/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		addr      string
		dbPath    string
		publicURL string
		apiKey    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session server",
		Long: `Starts the brickhunt server: the HTTP API, the websocket broadcast
hub and the SQLite session store.

Part lists are fetched from Rebrickable when a session is created, which
needs an API key (https://rebrickable.com/api/).`,
		Example: `  # Serve on the default address
  REBRICKABLE_API_KEY=... brickhunt serve

  # Serve on all interfaces with share links pointing at a public name
  brickhunt serve --addr :8787 --public-url https://bricks.example`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				// Share links follow the new address unless set explicitly
				if cfg.PublicURL == "http://"+cfg.Addr {
					cfg.PublicURL = "http://" + addr
				}
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if cmd.Flags().Changed("public-url") {
				cfg.PublicURL = publicURL
			}

			key, err := auth.GetAPIKey(firstNonEmpty(apiKey, cfg.APIKey))
			if err != nil {
				return err
			}

			logger := slog.Default()
			st, err := store.Open(cfg.DBPath, logger.With("component", "store"))
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			sessions, err := st.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("Loaded sessions", "count", len(sessions))

			srv := server.New(st, rebrickable.New(key, cfg.APIURL), logger.With("component", "server"), cfg.PublicURL)
			defer srv.Close()

			httpServer := &http.Server{
				Addr:              cfg.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				logger.Info("brickhunt server listening", "addr", cfg.Addr, "public_url", cfg.PublicURL)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				logger.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("Server shutdown failed", "err", err)
					return err
				}
				logger.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, localhost:8787)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file")
	cmd.Flags().StringVar(&publicURL, "public-url", "", "Base URL used in share links")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Rebrickable API key (default $REBRICKABLE_API_KEY)")

	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
