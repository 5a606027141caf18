package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/pkg/autostalk"
)

var (
	crawlOutput      string
	crawlFormat      string
	crawlMode        string
	crawlMaxPages    int
	crawlDepth       int
	crawlConcurrency int
	crawlDelay       string
	crawlUserAgent   string
	crawlNoRobots    bool
	crawlNoBrowser   bool
	crawlMulti       bool
	crawlPerDomain   int
	crawlCheckpoint  string
	crawlInterval    int
	crawlMetrics     string
	crawlMongoURI    string
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl one or more URLs and extract repeating data",
		Long: `Crawl from the given seed URL(s), detecting listing structures and
extracting items as the crawl goes. Pagination is followed
automatically and results stream to the configured export backend.

Press Ctrl-C once to pause with a checkpoint, twice to stop.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawl,
	}

	cmd.Flags().StringVarP(&crawlOutput, "output", "o", "", "output directory (default ./output)")
	cmd.Flags().StringVarP(&crawlFormat, "format", "f", "", "output format: json, jsonl, csv, sqlite, mongodb")
	cmd.Flags().StringVar(&crawlMode, "mode", "auto", "fetch mode: auto, html, browser")
	cmd.Flags().IntVarP(&crawlMaxPages, "max-pages", "m", 0, "maximum pages to crawl (0 = config default)")
	cmd.Flags().IntVarP(&crawlDepth, "depth", "d", -1, "maximum crawl depth (-1 = config default)")
	cmd.Flags().IntVarP(&crawlConcurrency, "concurrency", "n", 0, "concurrent fetch slots (0 = config default)")
	cmd.Flags().StringVar(&crawlDelay, "delay", "", "minimum spacing between requests to one domain (e.g. 1s, 500ms)")
	cmd.Flags().StringVar(&crawlUserAgent, "user-agent", "", "custom User-Agent string")
	cmd.Flags().BoolVar(&crawlNoRobots, "no-robots", false, "ignore robots.txt")
	cmd.Flags().BoolVar(&crawlNoBrowser, "no-browser", false, "disable the headless browser fallback")
	cmd.Flags().BoolVar(&crawlMulti, "multi-domain", false, "cap pages per seed domain instead of crawling domains to exhaustion")
	cmd.Flags().IntVar(&crawlPerDomain, "max-pages-per-domain", 0, "per-domain page cap for --multi-domain (0 = config default)")
	cmd.Flags().StringVar(&crawlCheckpoint, "checkpoint", "", "checkpoint file path (default checkpoint.json)")
	cmd.Flags().IntVar(&crawlInterval, "checkpoint-interval", 0, "pages between checkpoints (0 = config default)")
	cmd.Flags().StringVar(&crawlMetrics, "metrics", "", "serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().StringVar(&crawlMongoURI, "mongo-uri", "", "MongoDB connection string for -f mongodb")

	return cmd
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCrawlOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, rawURL := range args {
		if err := config.ValidateURL(rawURL); err != nil {
			return fmt.Errorf("invalid URL %q: %w", rawURL, err)
		}
	}

	client, err := autostalk.NewWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	if err := client.SetMode(crawlMode); err != nil {
		return err
	}
	if _, err := client.OpenStorage(); err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	watchSignals(client)

	var summary *autostalk.Summary
	if crawlMulti {
		summary, err = client.CrawlMultiDomain(context.Background(), args, crawlPerDomain)
	} else {
		summary, err = client.Crawl(context.Background(), args...)
	}
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	printSummary(summary, cfg, client.State())
	return nil
}

// applyCrawlOverrides applies crawl command flags to the config.
func applyCrawlOverrides(cfg *config.Config) {
	if crawlOutput != "" {
		cfg.Export.Path = crawlOutput
	}
	if crawlFormat != "" {
		cfg.Export.Format = strings.ToLower(crawlFormat)
	}
	if crawlMongoURI != "" {
		cfg.Export.MongoURI = crawlMongoURI
	}
	if crawlMaxPages > 0 {
		cfg.MaxPages = crawlMaxPages
	}
	if crawlDepth >= 0 {
		cfg.MaxDepth = crawlDepth
	}
	if crawlConcurrency > 0 {
		cfg.Crawler.MaxConcurrency = crawlConcurrency
	}
	if crawlDelay != "" {
		if d, err := time.ParseDuration(crawlDelay); err == nil {
			cfg.Crawler.DomainDelay = d.Seconds()
		}
	}
	if crawlUserAgent != "" {
		cfg.Crawler.UserAgent = crawlUserAgent
	}
	if crawlNoRobots {
		cfg.Crawler.FollowRobots = false
	}
	if crawlNoBrowser {
		cfg.Crawler.EnablePlaywright = false
	}
	if crawlPerDomain > 0 {
		cfg.MaxPagesPerDomain = crawlPerDomain
	}
	if crawlCheckpoint != "" {
		cfg.CheckpointPath = crawlCheckpoint
	}
	if crawlInterval > 0 {
		cfg.CheckpointInterval = crawlInterval
	}
	if crawlMetrics != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = crawlMetrics
	}
}

// watchSignals pauses the session on the first interrupt and stops it
// on the second. A third interrupt exits immediately.
func watchSignals(client *autostalk.Client) {
	sigCh := make(chan os.Signal, 3)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\npausing after the current page, checkpoint will be saved (interrupt again to stop)")
		client.Pause()
		<-sigCh
		fmt.Fprintln(os.Stderr, "stopping")
		client.Stop()
		<-sigCh
		os.Exit(1)
	}()
}

// printSummary prints the end-of-crawl report.
func printSummary(s *autostalk.Summary, cfg *config.Config, state autostalk.State) {
	elapsed := time.Duration(s.ElapsedSeconds * float64(time.Second)).Round(time.Millisecond)

	if state == autostalk.StatePaused {
		fmt.Printf("\n⏸  Crawl paused after %s\n", elapsed)
	} else {
		fmt.Printf("\n✅ Crawl complete in %s\n", elapsed)
	}
	fmt.Printf("   Pages:     %d crawled, %d failed\n", s.PagesCrawled, s.Errors)
	fmt.Printf("   Items:     %d extracted\n", s.ItemsExtracted)
	fmt.Printf("   Domains:   %d\n", s.DomainsCrawled)
	fmt.Printf("   Rate:      %.1f pages/s, %.0f%% success\n", s.PagesPerSecond, s.SuccessRate*100)
	if cfg.Export.Format == "mongodb" {
		fmt.Printf("   Output:    mongodb\n")
	} else {
		fmt.Printf("   Output:    %s (%s)\n", cfg.Export.Path, cfg.Export.Format)
	}

	if len(s.DomainCounts) > 1 {
		domains := make([]string, 0, len(s.DomainCounts))
		for d := range s.DomainCounts {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		fmt.Printf("\n   Pages per domain:\n")
		for _, d := range domains {
			fmt.Printf("     %-40s %d\n", d, s.DomainCounts[d])
		}
	}

	if state == autostalk.StatePaused {
		fmt.Printf("\n💡 Resume with: autostalk resume %s\n", cfg.CheckpointPath)
	}
}
