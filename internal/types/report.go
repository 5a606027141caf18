package types

// ProgressSnapshot is pushed to the progress sink while a crawl runs.
type ProgressSnapshot struct {
	PagesCrawled   int     `json:"pages_crawled"`
	PagesTotal     int     `json:"pages_total"`
	ProgressPct    float64 `json:"progress_pct"`
	ItemsExtracted int     `json:"items_extracted"`
	Errors         int     `json:"errors"`
	PagesPerSec    float64 `json:"pages_per_sec"`
	ETASeconds     float64 `json:"eta_seconds"`
}

// Summary is returned by Crawl when a session finishes.
type Summary struct {
	SessionID      string         `json:"session_id"`
	PagesCrawled   int            `json:"pages_crawled"`
	PagesTotal     int            `json:"pages_total"`
	ItemsExtracted int            `json:"items_extracted"`
	Errors         int            `json:"errors"`
	DomainsCrawled int            `json:"domains_crawled"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	PagesPerSecond float64        `json:"pages_per_second"`
	SuccessRate    float64        `json:"success_rate"`
	EngineStats    map[string]any `json:"engine_stats,omitempty"`
	DomainCounts   map[string]int `json:"domain_counts,omitempty"`
}
