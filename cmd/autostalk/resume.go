package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/pkg/autostalk"
)

var (
	resumeOutput   string
	resumeFormat   string
	resumeMode     string
	resumeMaxPages int
)

// resumeCmd creates the "resume" subcommand.
func resumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [checkpoint]",
		Short: "Continue a crawl from a checkpoint file",
		Long: `Restore a paused or interrupted crawl from its checkpoint file and
continue where it left off. Visited pages are not refetched and the
session's counters carry on from their saved values.`,
		Args: cobra.ExactArgs(1),
		RunE: runResume,
	}

	cmd.Flags().StringVarP(&resumeOutput, "output", "o", "", "output directory (default ./output)")
	cmd.Flags().StringVarP(&resumeFormat, "format", "f", "", "output format: json, jsonl, csv, sqlite, mongodb")
	cmd.Flags().StringVar(&resumeMode, "mode", "auto", "fetch mode: auto, html, browser")
	cmd.Flags().IntVarP(&resumeMaxPages, "max-pages", "m", 0, "total page budget including pages already crawled (0 = config default)")

	return cmd
}

// runResume executes the resume command.
func runResume(cmd *cobra.Command, args []string) error {
	checkpointPath := args[0]
	if _, err := os.Stat(checkpointPath); err != nil {
		return fmt.Errorf("checkpoint %s: %w", checkpointPath, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if resumeOutput != "" {
		cfg.Export.Path = resumeOutput
	}
	if resumeFormat != "" {
		cfg.Export.Format = strings.ToLower(resumeFormat)
	}
	if resumeMaxPages > 0 {
		cfg.MaxPages = resumeMaxPages
	}
	// Later checkpoints overwrite the file being resumed from.
	cfg.CheckpointPath = checkpointPath

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	client, err := autostalk.NewWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	if err := client.SetMode(resumeMode); err != nil {
		return err
	}
	if _, err := client.OpenStorage(); err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	watchSignals(client)

	summary, err := client.ResumeFromFile(context.Background(), checkpointPath)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	printSummary(summary, cfg, client.State())
	return nil
}
