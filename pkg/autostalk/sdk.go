// Package autostalk provides a public SDK for embedding AutoStalk as a
// library.
//
// Example usage:
//
//	client, err := autostalk.New(
//	    autostalk.WithMaxPages(100),
//	    autostalk.WithOutput("jsonl", "./output"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.OnResult(func(item *autostalk.Item) {
//	    fmt.Println(item.GetString(autostalk.FieldTitle))
//	})
//
//	summary, err := client.Crawl(context.Background(), "https://shop.example.com/products")
package autostalk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/internal/crawl"
	"github.com/IshaanNene/AutoStalk/internal/detect"
	"github.com/IshaanNene/AutoStalk/internal/engine"
	"github.com/IshaanNene/AutoStalk/internal/extract"
	"github.com/IshaanNene/AutoStalk/internal/fetcher"
	"github.com/IshaanNene/AutoStalk/internal/observability"
	"github.com/IshaanNene/AutoStalk/internal/storage"
	"github.com/IshaanNene/AutoStalk/internal/types"
)

// Aliases re-export the types callers work with, so user code never
// imports internal packages.
type (
	Item             = types.Item
	Mode             = types.Mode
	Summary          = types.Summary
	ProgressSnapshot = types.ProgressSnapshot
	PatternSet       = types.PatternSet
	PaginationHint   = types.PaginationHint
	StructuredData   = extract.StructuredData
	FieldRule        = config.FieldRule
	Config           = config.Config
	Storage          = storage.Storage
	State            = crawl.State
)

// Crawl modes.
const (
	ModeAuto    = types.ModeAuto
	ModeHTML    = types.ModeHTML
	ModeBrowser = types.ModeBrowser
)

// Session states.
const (
	StateRunning = crawl.StateRunning
	StatePaused  = crawl.StatePaused
	StateStopped = crawl.StateStopped
)

// Canonical item field names.
const (
	FieldTitle           = types.FieldTitle
	FieldLink            = types.FieldLink
	FieldImage           = types.FieldImage
	FieldPrice           = types.FieldPrice
	FieldPriceNormalized = types.FieldPriceNormalized
	FieldDescription     = types.FieldDescription
)

// Pagination hint kinds.
const (
	PaginationButton   = types.PaginationButton
	PaginationLinks    = types.PaginationLinks
	PaginationLoadMore = types.PaginationLoadMore
)

// ParseMode converts "auto", "html" or "browser" into a Mode.
func ParseMode(s string) (Mode, error) {
	return types.ParseMode(s)
}

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// Option configures a Client.
type Option func(*config.Config)

// WithMaxPages caps the total pages crawled per session.
func WithMaxPages(n int) Option {
	return func(c *config.Config) { c.MaxPages = n }
}

// WithMaxDepth caps the link-following depth from the seeds.
func WithMaxDepth(n int) Option {
	return func(c *config.Config) { c.MaxDepth = n }
}

// WithMaxDomains caps the number of distinct domains a session may touch.
func WithMaxDomains(n int) Option {
	return func(c *config.Config) { c.MaxDomains = n }
}

// WithDomainDelay sets the minimum spacing between requests to one host.
func WithDomainDelay(seconds float64) Option {
	return func(c *config.Config) { c.Crawler.DomainDelay = seconds }
}

// WithTimeout sets the per-request total timeout.
func WithTimeout(seconds float64) Option {
	return func(c *config.Config) { c.Crawler.RequestTimeout = seconds }
}

// WithUserAgent sets a custom User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *config.Config) { c.Crawler.UserAgent = ua }
}

// WithBrowser enables or disables the headless browser fallback.
func WithBrowser(enabled bool) Option {
	return func(c *config.Config) { c.Crawler.EnablePlaywright = enabled }
}

// WithRobots enables or disables robots.txt compliance.
func WithRobots(follow bool) Option {
	return func(c *config.Config) { c.Crawler.FollowRobots = follow }
}

// WithOutput sets the export format (json, jsonl, csv, sqlite) and
// output directory. Storage still has to be opened with OpenStorage.
func WithOutput(format, path string) Option {
	return func(c *config.Config) {
		c.Export.Format = format
		c.Export.Path = path
	}
}

// WithMongo points the export at a MongoDB collection.
func WithMongo(uri, database, collection string) Option {
	return func(c *config.Config) {
		c.Export.Format = "mongodb"
		c.Export.MongoURI = uri
		c.Export.MongoDatabase = database
		c.Export.MongoCollection = collection
	}
}

// WithProxies enables proxy rotation over the given proxy URLs.
func WithProxies(urls ...string) Option {
	return func(c *config.Config) {
		c.Proxy.Enabled = true
		c.Proxy.URLs = urls
	}
}

// WithCookies installs a raw "name=value; name2=value2" cookie string
// on every request.
func WithCookies(cookies string) Option {
	return func(c *config.Config) { c.Login.Cookies = cookies }
}

// WithHeaders sends the given headers verbatim on every HTTP request.
func WithHeaders(headers map[string]string) Option {
	return func(c *config.Config) { c.Login.Headers = headers }
}

// WithCustomFields adds user extraction rules evaluated per item after
// the automatic fields.
func WithCustomFields(rules ...FieldRule) Option {
	return func(c *config.Config) {
		c.Extract.CustomFields = append(c.Extract.CustomFields, rules...)
	}
}

// WithCheckpoint sets the checkpoint file and the page interval between
// saves. interval <= 0 checkpoints only when the session ends.
func WithCheckpoint(path string, interval int) Option {
	return func(c *config.Config) {
		c.CheckpointPath = path
		c.CheckpointInterval = interval
	}
}

// WithMetrics serves /metrics and /health on addr for the lifetime of
// the client.
func WithMetrics(addr string) Option {
	return func(c *config.Config) {
		c.Metrics.Enabled = true
		c.Metrics.Addr = addr
	}
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.Logging.Level = "debug" }
}

// Client is the high-level API for using AutoStalk as a library.
type Client struct {
	cfg       *config.Config
	logger    *slog.Logger
	extractor *extract.Extractor
	engine    *engine.Engine
	handler   *crawl.Handler
	metrics   *observability.Metrics
	store     storage.Storage
	mode      types.Mode

	resultFn   func(*Item)
	progressFn func(ProgressSnapshot)
}

// New creates a Client from the default configuration plus options.
func New(opts ...Option) (*Client, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Client from a ready-made configuration, for
// callers that load one from a file.
func NewWithConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := newLogger(cfg.Logging.Level)

	creds := fetcher.CredentialsFromConfig(cfg.Login)
	proxies := fetcher.NewProxyManager(&cfg.Proxy, logger)

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, logger,
		fetcher.WithHTTPProxy(proxies),
		fetcher.WithHTTPCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create http fetcher: %w", err)
	}

	// A disabled browser stays a nil interface so the engine knows
	// there is nothing to fall back to.
	var browser fetcher.Fetcher
	if cfg.Crawler.EnablePlaywright {
		browser = fetcher.NewBrowserFetcher(cfg, logger,
			fetcher.WithProxy(proxies),
			fetcher.WithCookies(creds))
	}

	detector := detect.NewDetector(cfg.Detector, logger)
	extractor, err := extract.NewExtractor(detector, cfg.Extract, logger)
	if err != nil {
		httpFetcher.Close()
		return nil, fmt.Errorf("create extractor: %w", err)
	}

	eng := engine.New(httpFetcher, browser, extractor, logger)

	handler, err := crawl.New(eng, cfg, logger)
	if err != nil {
		eng.Close()
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		logger:    logger,
		extractor: extractor,
		engine:    eng,
		handler:   handler,
		mode:      types.ModeAuto,
	}

	if cfg.Metrics.Enabled {
		c.metrics = observability.NewMetrics(logger)
		handler.SetMetrics(c.metrics)
		if err := c.metrics.StartServer(cfg.Metrics.Addr); err != nil {
			eng.Close()
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
	}

	c.wireSinks()
	return c, nil
}

// wireSinks installs the handler callbacks once. The closures read the
// client's fields at call time, so OnResult, OnProgress and storage may
// be registered after New.
func (c *Client) wireSinks() {
	c.handler.SetResultSink(func(item *types.Item) {
		if c.store != nil {
			if err := c.store.Store([]*types.Item{item}); err != nil {
				c.logger.Error("store item failed", "error", err)
			} else if c.metrics != nil {
				c.metrics.ItemsStored.Add(1)
			}
		}
		if c.resultFn != nil {
			c.resultFn(item)
		}
	})
	c.handler.SetProgressSink(func(snap types.ProgressSnapshot) {
		if c.progressFn != nil {
			c.progressFn(snap)
		}
	})
	if c.cfg.CheckpointPath != "" {
		c.handler.SetCheckpointSink(crawl.FileCheckpointSink(c.cfg.CheckpointPath))
	}
}

// OnResult registers a callback invoked for every extracted item.
func (c *Client) OnResult(fn func(*Item)) { c.resultFn = fn }

// OnProgress registers a callback invoked after every crawled page.
func (c *Client) OnProgress(fn func(ProgressSnapshot)) { c.progressFn = fn }

// SetMode fixes the fetch mode for subsequent crawls: "auto" (default),
// "html" or "browser".
func (c *Client) SetMode(mode string) error {
	m, err := types.ParseMode(mode)
	if err != nil {
		return err
	}
	c.mode = m
	return nil
}

// SetStorage routes extracted items into s alongside any OnResult
// callback. The client closes s on Close.
func (c *Client) SetStorage(s Storage) { c.store = s }

// OpenStorage builds the backend the export config selects and
// registers it.
func (c *Client) OpenStorage() (Storage, error) {
	s, err := storage.NewFromConfig(c.cfg.Export, c.logger)
	if err != nil {
		return nil, err
	}
	c.store = s
	return s, nil
}

// Crawl crawls from startURLs until the queue empties, a limit is hit,
// the session is paused or stopped, or ctx is cancelled. Calling it
// again on a paused session continues with no new seeds needed.
func (c *Client) Crawl(ctx context.Context, startURLs ...string) (*Summary, error) {
	return c.handler.Crawl(ctx, startURLs, c.mode)
}

// CrawlMultiDomain crawls seeds from several hosts with a per-host page
// cap. maxPagesPerDomain < 1 uses the configured default.
func (c *Client) CrawlMultiDomain(ctx context.Context, startURLs []string, maxPagesPerDomain int) (*Summary, error) {
	return c.handler.CrawlMultiDomain(ctx, startURLs, c.mode, maxPagesPerDomain)
}

// Resume restores a session from a checkpoint blob and continues it.
func (c *Client) Resume(ctx context.Context, checkpoint []byte) (*Summary, error) {
	if err := c.handler.ResumeFromCheckpoint(checkpoint); err != nil {
		return nil, err
	}
	return c.handler.Crawl(ctx, nil, c.mode)
}

// ResumeFromFile restores a session from a checkpoint file and
// continues it.
func (c *Client) ResumeFromFile(ctx context.Context, path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return c.Resume(ctx, data)
}

// Extract fetches a single page and returns its items without
// following pagination.
func (c *Client) Extract(ctx context.Context, url string) ([]*Item, error) {
	items, _, _, err := c.engine.FetchAndExtract(ctx, url, c.mode)
	return items, err
}

// Analyze fetches a single page and returns the detected repeating
// containers and pagination.
func (c *Client) Analyze(ctx context.Context, url string) (*PatternSet, error) {
	html, _, err := c.engine.Fetch(ctx, url, c.mode)
	if err != nil {
		return nil, err
	}
	return c.extractor.Analyze(html, url)
}

// ExtractStructured fetches a single page and returns its embedded
// structured data (JSON-LD, OpenGraph, Twitter Cards, microdata, meta).
func (c *Client) ExtractStructured(ctx context.Context, url string) ([]StructuredData, error) {
	html, _, err := c.engine.Fetch(ctx, url, c.mode)
	if err != nil {
		return nil, err
	}
	return c.extractor.ExtractStructured(html, url)
}

// Pause asks a running crawl to stop at the next page boundary with all
// state intact. A later Crawl call continues the session.
func (c *Client) Pause() bool { return c.handler.Pause() }

// Stop ends the current session permanently.
func (c *Client) Stop() bool { return c.handler.Stop() }

// State reports the current session state.
func (c *Client) State() State { return c.handler.State() }

// Stats returns engine fetch statistics.
func (c *Client) Stats() map[string]any { return c.engine.StatsSnapshot() }

// MetricsSnapshot returns the crawl metrics, nil when metrics are
// disabled.
func (c *Client) MetricsSnapshot() map[string]int64 {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Snapshot()
}

// Close releases fetchers, storage and the metrics server.
func (c *Client) Close() error {
	var firstErr error
	if err := c.engine.Close(); err != nil {
		firstErr = err
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.metrics.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
