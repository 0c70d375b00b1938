package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/popui/internal/fixture"
)

var serveOpts struct {
	addr string
	dir  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve canned remote popup content",
	Long: `Serve JSON mutations from a directory for remote popups.

Each <dir>/<name>.json is served at GET /popup/{name}. GET /popups lists the
available names. Add ?status=503 to force an error response or ?delay=2s to
slow a response down.

Example fixture (news.json):
  {
    "content": [{"what": ".popup__title", "data": "Breaking news"}],
    "append":  [{"what": ".popup__body", "data": "<p>More soon.</p>"}]
  }`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveOpts.addr, "addr", "127.0.0.1:8080",
		"Address to listen on")
	serveCmd.Flags().StringVar(&serveOpts.dir, "dir", ".",
		"Directory containing <name>.json fixtures")
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(serveOpts.dir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := fixture.New(serveOpts.dir, logger)
	if names, err := srv.Names(); err == nil {
		logger.Info("serving popup fixtures", "count", len(names))
	}

	err := srv.ListenAndServe(ctx, serveOpts.addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
