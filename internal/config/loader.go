package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support
	v.SetEnvPrefix("AUTOSTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("autostalk")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".autostalk"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawler.max_concurrency", cfg.Crawler.MaxConcurrency)
	v.SetDefault("crawler.request_timeout", cfg.Crawler.RequestTimeout)
	v.SetDefault("crawler.retry", cfg.Crawler.Retry)
	v.SetDefault("crawler.delay_range", cfg.Crawler.DelayRange)
	v.SetDefault("crawler.enable_playwright", cfg.Crawler.EnablePlaywright)
	v.SetDefault("crawler.follow_robots", cfg.Crawler.FollowRobots)
	v.SetDefault("crawler.domain_delay", cfg.Crawler.DomainDelay)
	v.SetDefault("crawler.user_agent", cfg.Crawler.UserAgent)

	v.SetDefault("domain_crawler.exclude_extensions", cfg.DomainCrawler.ExcludeExtensions)

	v.SetDefault("detector.min_repeats", cfg.Detector.MinRepeats)
	v.SetDefault("detector.max_samples", cfg.Detector.MaxSamples)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)

	v.SetDefault("export.format", cfg.Export.Format)
	v.SetDefault("export.path", cfg.Export.Path)

	v.SetDefault("logging.level", cfg.Logging.Level)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	v.SetDefault("max_pages", cfg.MaxPages)
	v.SetDefault("max_depth", cfg.MaxDepth)
	v.SetDefault("max_domains", cfg.MaxDomains)
	v.SetDefault("max_pages_per_domain", cfg.MaxPagesPerDomain)
	v.SetDefault("checkpoint_interval", cfg.CheckpointInterval)
	v.SetDefault("checkpoint_path", cfg.CheckpointPath)
}
