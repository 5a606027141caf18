package config

import (
	"strings"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for AutoStalk.
type Config struct {
	Crawler       CrawlerConfig       `mapstructure:"crawler"        yaml:"crawler"`
	DomainCrawler DomainCrawlerConfig `mapstructure:"domain_crawler" yaml:"domain_crawler"`
	Detector      DetectorConfig      `mapstructure:"detector"       yaml:"detector"`
	Extract       ExtractConfig       `mapstructure:"extract"        yaml:"extract"`
	Proxy         ProxyConfig         `mapstructure:"proxy"          yaml:"proxy"`
	Login         LoginConfig         `mapstructure:"login"          yaml:"login"`
	Export        ExportConfig        `mapstructure:"export"         yaml:"export"`
	Logging       LoggingConfig       `mapstructure:"logging"        yaml:"logging"`
	Metrics       MetricsConfig       `mapstructure:"metrics"        yaml:"metrics"`

	MaxPages           int    `mapstructure:"max_pages"            yaml:"max_pages"`
	MaxDepth           int    `mapstructure:"max_depth"            yaml:"max_depth"`
	MaxDomains         int    `mapstructure:"max_domains"          yaml:"max_domains"`
	MaxPagesPerDomain  int    `mapstructure:"max_pages_per_domain" yaml:"max_pages_per_domain"`
	CheckpointInterval int    `mapstructure:"checkpoint_interval"  yaml:"checkpoint_interval"`
	CheckpointPath     string `mapstructure:"checkpoint_path"      yaml:"checkpoint_path"`
}

// CrawlerConfig controls the fetch layer shared by both modes.
type CrawlerConfig struct {
	MaxConcurrency   int       `mapstructure:"max_concurrency"   yaml:"max_concurrency"`
	RequestTimeout   float64   `mapstructure:"request_timeout"   yaml:"request_timeout"` // seconds
	Retry            int       `mapstructure:"retry"             yaml:"retry"`
	DelayRange       []float64 `mapstructure:"delay_range"       yaml:"delay_range"` // [min, max] seconds
	EnablePlaywright bool      `mapstructure:"enable_playwright" yaml:"enable_playwright"`
	FollowRobots     bool      `mapstructure:"follow_robots"     yaml:"follow_robots"`
	DomainDelay      float64   `mapstructure:"domain_delay"      yaml:"domain_delay"` // seconds
	UserAgent        string    `mapstructure:"user_agent"        yaml:"user_agent"`
}

// Timeout returns the per-request total timeout as a duration.
func (c CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout * float64(time.Second))
}

// Delays returns the post-attempt sleep bounds. A missing or malformed
// delay_range yields (0, 0), which disables the sleep.
func (c CrawlerConfig) Delays() (min, max time.Duration) {
	if len(c.DelayRange) != 2 || c.DelayRange[0] < 0 || c.DelayRange[1] < c.DelayRange[0] {
		return 0, 0
	}
	min = time.Duration(c.DelayRange[0] * float64(time.Second))
	max = time.Duration(c.DelayRange[1] * float64(time.Second))
	return min, max
}

// HostInterval returns the minimum spacing between requests to one host.
func (c CrawlerConfig) HostInterval() time.Duration {
	return time.Duration(c.DomainDelay * float64(time.Second))
}

// DomainCrawlerConfig controls URL filtering during link following.
type DomainCrawlerConfig struct {
	ExcludeExtensions []string `mapstructure:"exclude_extensions" yaml:"exclude_extensions"`
}

// DetectorConfig controls pattern detection.
type DetectorConfig struct {
	MinRepeats int `mapstructure:"min_repeats" yaml:"min_repeats"`
	MaxSamples int `mapstructure:"max_samples" yaml:"max_samples"`
}

// ExtractConfig controls extraction overrides.
type ExtractConfig struct {
	CustomFields []FieldRule `mapstructure:"custom_fields" yaml:"custom_fields"`
}

// FieldRule defines one user-supplied extraction rule, evaluated per item
// after the automatic fields.
type FieldRule struct {
	Name      string `mapstructure:"name"      yaml:"name"`
	Type      string `mapstructure:"type"      yaml:"type"` // css, xpath, regex
	Selector  string `mapstructure:"selector"  yaml:"selector"`
	Pattern   string `mapstructure:"pattern"   yaml:"pattern"`
	Attribute string `mapstructure:"attribute" yaml:"attribute"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
}

// LoginConfig carries ready-made credentials injected into fetchers.
// Cookies is a raw "name=value; name2=value2" string as copied from a
// browser; Headers are sent verbatim on every HTTP request.
type LoginConfig struct {
	Cookies string            `mapstructure:"cookies" yaml:"cookies"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}

// CookieMap parses the raw cookie string into name/value pairs. Fragments
// without an "=" are ignored.
func (l LoginConfig) CookieMap() map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(l.Cookies, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

// ExportConfig controls the result sink.
type ExportConfig struct {
	Format          string `mapstructure:"format"           yaml:"format"`
	Path            string `mapstructure:"path"             yaml:"path"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr"    yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			MaxConcurrency:   10,
			RequestTimeout:   30,
			Retry:            3,
			DelayRange:       []float64{0.5, 1.5},
			EnablePlaywright: true,
			FollowRobots:     true,
			DomainDelay:      1.0,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		DomainCrawler: DomainCrawlerConfig{
			ExcludeExtensions: []string{
				".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
				".css", ".js", ".woff", ".woff2", ".ttf",
				".pdf", ".zip", ".tar", ".gz", ".rar",
				".mp3", ".mp4", ".avi", ".mov",
			},
		},
		Detector: DetectorConfig{
			MinRepeats: 3,
			MaxSamples: 5,
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
		},
		Export: ExportConfig{
			Format: "jsonl",
			Path:   "./output",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		MaxPages:           100000,
		MaxDepth:           10,
		MaxDomains:         100,
		MaxPagesPerDomain:  1000,
		CheckpointInterval: 100,
		CheckpointPath:     "checkpoint.json",
	}
}
