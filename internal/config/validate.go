package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawler.MaxConcurrency < 1 {
		return fmt.Errorf("crawler.max_concurrency must be >= 1, got %d", cfg.Crawler.MaxConcurrency)
	}
	if cfg.Crawler.MaxConcurrency > 1000 {
		return fmt.Errorf("crawler.max_concurrency must be <= 1000, got %d", cfg.Crawler.MaxConcurrency)
	}
	if cfg.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if cfg.Crawler.Retry < 1 {
		return fmt.Errorf("crawler.retry must be >= 1, got %d", cfg.Crawler.Retry)
	}
	if len(cfg.Crawler.DelayRange) != 0 {
		if len(cfg.Crawler.DelayRange) != 2 {
			return fmt.Errorf("crawler.delay_range must be [min, max], got %d values", len(cfg.Crawler.DelayRange))
		}
		if cfg.Crawler.DelayRange[0] < 0 || cfg.Crawler.DelayRange[1] < cfg.Crawler.DelayRange[0] {
			return fmt.Errorf("crawler.delay_range must satisfy 0 <= min <= max")
		}
	}
	if cfg.Crawler.DomainDelay < 0 {
		return fmt.Errorf("crawler.domain_delay must be >= 0")
	}

	if cfg.MaxPages < 1 {
		return fmt.Errorf("max_pages must be >= 1, got %d", cfg.MaxPages)
	}
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", cfg.MaxDepth)
	}
	if cfg.MaxDomains < 1 {
		return fmt.Errorf("max_domains must be >= 1, got %d", cfg.MaxDomains)
	}
	if cfg.MaxPagesPerDomain < 1 {
		return fmt.Errorf("max_pages_per_domain must be >= 1, got %d", cfg.MaxPagesPerDomain)
	}
	if cfg.CheckpointInterval < 1 {
		return fmt.Errorf("checkpoint_interval must be >= 1, got %d", cfg.CheckpointInterval)
	}

	if cfg.Detector.MinRepeats < 2 {
		return fmt.Errorf("detector.min_repeats must be >= 2, got %d", cfg.Detector.MinRepeats)
	}
	if cfg.Detector.MaxSamples < 1 {
		return fmt.Errorf("detector.max_samples must be >= 1, got %d", cfg.Detector.MaxSamples)
	}

	for _, rule := range cfg.Extract.CustomFields {
		if rule.Name == "" {
			return fmt.Errorf("extract.custom_fields entries need a name")
		}
		switch rule.Type {
		case "css", "xpath":
			if rule.Selector == "" {
				return fmt.Errorf("custom field %q: %s rule needs a selector", rule.Name, rule.Type)
			}
		case "regex":
			if rule.Pattern == "" {
				return fmt.Errorf("custom field %q: regex rule needs a pattern", rule.Name)
			}
		default:
			return fmt.Errorf("custom field %q: type must be css/xpath/regex, got %q", rule.Name, rule.Type)
		}
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		if len(cfg.Proxy.URLs) == 0 {
			return fmt.Errorf("proxy.enabled requires at least one proxy.urls entry")
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	validFormats := map[string]bool{
		"json": true, "jsonl": true, "csv": true, "sqlite": true, "mongodb": true,
	}
	if !validFormats[cfg.Export.Format] {
		return fmt.Errorf("export.format %q is not supported (valid: json, jsonl, csv, sqlite, mongodb)", cfg.Export.Format)
	}
	if cfg.Export.Format == "mongodb" && cfg.Export.MongoURI == "" {
		return fmt.Errorf("export.format mongodb requires export.mongo_uri")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
