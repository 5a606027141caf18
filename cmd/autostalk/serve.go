package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/AutoStalk/internal/api"
	"github.com/IshaanNene/AutoStalk/internal/config"
)

var serveAddr string

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve the crawler over HTTP. One-shot endpoints extract or analyze
a single page; crawl jobs run in the background with pause, resume
and stop control.

Endpoints:
  GET  /api/health
  POST /api/extract           {"url": "...", "mode": "auto"}
  POST /api/analyze           {"url": "...", "structured": true}
  POST /api/crawl             {"urls": ["..."], "max_pages": 100}
  GET  /api/jobs              list jobs
  GET  /api/jobs/{id}         job detail with progress and summary
  POST /api/jobs/{id}/pause   checkpoint and pause
  POST /api/jobs/{id}/resume  continue a paused job
  POST /api/jobs/{id}/stop    end a job
  GET  /api/stats             engine fetch statistics`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")

	return cmd
}

// runServe executes the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	srv, err := api.NewServer(cfg, setupLogger())
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(serveAddr); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	fmt.Printf("🌐 AutoStalk API listening on %s\n", serveAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Fprintf(os.Stderr, "\nreceived %s, shutting down\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}
