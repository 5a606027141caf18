package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/pkg/autostalk"
)

var (
	detectMode       string
	detectJSON       bool
	detectStructured bool
	detectNoBrowser  bool
)

// detectCmd creates the "detect" subcommand.
func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [url]",
		Short: "Analyze a page without crawling",
		Long: `Fetch a single page and report what a crawl would extract: the
repeating container candidates with their scores, the field selectors
of the best one, and any pagination or infinite-scroll hints.`,
		Args: cobra.ExactArgs(1),
		RunE: runDetect,
	}

	cmd.Flags().StringVar(&detectMode, "mode", "auto", "fetch mode: auto, html, browser")
	cmd.Flags().BoolVar(&detectJSON, "json", false, "print the raw pattern set as JSON")
	cmd.Flags().BoolVar(&detectStructured, "structured", false, "also print embedded structured data (JSON-LD, OpenGraph, ...)")
	cmd.Flags().BoolVar(&detectNoBrowser, "no-browser", false, "disable the headless browser fallback")

	return cmd
}

// runDetect executes the detect command.
func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if detectNoBrowser {
		cfg.Crawler.EnablePlaywright = false
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	pageURL := args[0]
	if err := config.ValidateURL(pageURL); err != nil {
		return fmt.Errorf("invalid URL %q: %w", pageURL, err)
	}

	client, err := autostalk.NewWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	if err := client.SetMode(detectMode); err != nil {
		return err
	}

	ctx := context.Background()
	patterns, err := client.Analyze(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if detectJSON {
		out, err := json.MarshalIndent(patterns, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printPatterns(pageURL, patterns)
	}

	if detectStructured {
		blocks, err := client.ExtractStructured(ctx, pageURL)
		if err != nil {
			return fmt.Errorf("structured data: %w", err)
		}
		printStructured(blocks)
	}
	return nil
}

// printPatterns renders a pattern set for humans.
func printPatterns(pageURL string, p *autostalk.PatternSet) {
	fmt.Printf("🔍 %s\n\n", pageURL)

	if len(p.Containers) == 0 {
		fmt.Println("No repeating structures found. The page may need browser rendering (--mode browser).")
	} else {
		fmt.Printf("Containers:\n")
		for i, c := range p.Containers {
			fmt.Printf("  %d. %-40s %3d items  score %.2f\n", i+1, c.Selector, c.Count, c.Score)
			if i == 0 && c.Sample != nil {
				if fields := sampleFields(c.Sample); len(fields) > 0 {
					fmt.Printf("     fields: %s\n", strings.Join(fields, ", "))
				}
			}
		}
	}

	if len(p.ContentStructure) > 0 {
		fields := make([]string, 0, len(p.ContentStructure))
		for f := range p.ContentStructure {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		fmt.Printf("\nField selectors:\n")
		for _, f := range fields {
			fmt.Printf("  %-12s %s\n", f, p.ContentStructure[f])
		}
	}

	switch {
	case p.Pagination == nil:
		fmt.Printf("\nPagination: none detected\n")
	case p.Pagination.Kind == autostalk.PaginationButton:
		fmt.Printf("\nPagination: next button (%s) -> %s\n", p.Pagination.Selector, p.Pagination.NextURL)
	case p.Pagination.Kind == autostalk.PaginationLinks:
		fmt.Printf("\nPagination: numbered links, pattern %s, %d pages known\n", p.Pagination.URLPattern, len(p.Pagination.KnownPages))
	case p.Pagination.Kind == autostalk.PaginationLoadMore:
		fmt.Printf("\nPagination: load-more button (%s)\n", p.Pagination.Selector)
	default:
		fmt.Printf("\nPagination: %s\n", p.Pagination.Kind)
	}

	if p.InfiniteScroll != nil {
		fmt.Printf("Infinite scroll: likely (%s)\n", strings.Join(p.InfiniteScroll.Indicators, ", "))
	}
}

// sampleFields lists an item's visible field names, sorted.
func sampleFields(item *autostalk.Item) []string {
	fields := make([]string, 0, len(item.Fields))
	for _, k := range item.Keys() {
		if strings.HasPrefix(k, "_") {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// printStructured renders embedded structured-data blocks.
func printStructured(blocks []autostalk.StructuredData) {
	if len(blocks) == 0 {
		fmt.Printf("\nStructured data: none\n")
		return
	}
	fmt.Printf("\nStructured data:\n")
	for _, b := range blocks {
		out, err := json.Marshal(b.Data)
		if err != nil {
			continue
		}
		preview := string(out)
		if len(preview) > 120 {
			preview = preview[:117] + "..."
		}
		fmt.Printf("  %-12s %s\n", b.Type, preview)
	}
}
