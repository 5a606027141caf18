package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/AutoStalk/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "autostalk",
		Short: "AutoStalk - zero-configuration web crawler and extractor",
		Long: `AutoStalk crawls websites and extracts structured data without
selectors, schemas, or training. Point it at a URL and it works out
the rest.

Features:
  • Detects repeating listing structures by clustering DOM signatures
  • Extracts titles, prices, links, images and descriptions per item
  • Follows pagination buttons, numbered links and load-more patterns
  • Falls back to a headless browser when static HTML comes up empty
  • Remembers which fetch mode worked for each host
  • Honors robots.txt with per-domain rate limiting
  • Scales across domains with checkpointed pause/resume
  • Exports JSON, JSONL, CSV, SQLite or MongoDB`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogger creates a structured logger for components that log
// outside a client.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file (or defaults) and applies the
// persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("AutoStalk %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Crawler:\n")
			fmt.Printf("  Concurrency:        %d\n", cfg.Crawler.MaxConcurrency)
			fmt.Printf("  Request Timeout:    %s\n", cfg.Crawler.Timeout())
			fmt.Printf("  Retries:            %d\n", cfg.Crawler.Retry)
			fmt.Printf("  Domain Delay:       %s\n", cfg.Crawler.HostInterval())
			fmt.Printf("  Browser Fallback:   %v\n", cfg.Crawler.EnablePlaywright)
			fmt.Printf("  Respect robots.txt: %v\n", cfg.Crawler.FollowRobots)
			fmt.Printf("\nLimits:\n")
			fmt.Printf("  Max Pages:          %d\n", cfg.MaxPages)
			fmt.Printf("  Max Depth:          %d\n", cfg.MaxDepth)
			fmt.Printf("  Max Domains:        %d\n", cfg.MaxDomains)
			fmt.Printf("  Pages Per Domain:   %d\n", cfg.MaxPagesPerDomain)
			fmt.Printf("\nDetector:\n")
			fmt.Printf("  Min Repeats:        %d\n", cfg.Detector.MinRepeats)
			fmt.Printf("  Max Samples:        %d\n", cfg.Detector.MaxSamples)
			fmt.Printf("\nExtract:\n")
			fmt.Printf("  Custom Fields:      %d configured\n", len(cfg.Extract.CustomFields))
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Proxy.Enabled)
			fmt.Printf("  Rotation:           %s\n", cfg.Proxy.Rotation)
			fmt.Printf("  Count:              %d\n", len(cfg.Proxy.URLs))
			fmt.Printf("\nExport:\n")
			fmt.Printf("  Format:             %s\n", cfg.Export.Format)
			fmt.Printf("  Path:               %s\n", cfg.Export.Path)
			fmt.Printf("\nCheckpoint:\n")
			fmt.Printf("  Path:               %s\n", cfg.CheckpointPath)
			fmt.Printf("  Interval:           every %d pages\n", cfg.CheckpointInterval)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Addr:               %s\n", cfg.Metrics.Addr)
			return nil
		},
	}
}
