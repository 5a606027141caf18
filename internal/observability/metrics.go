// Package observability exposes crawl counters over HTTP in Prometheus
// text exposition format.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational metrics for the crawler. Counters only
// ever grow; QueueDepth and DomainsSeen are gauges overwritten as the
// crawl progresses.
type Metrics struct {
	PagesCrawled     atomic.Int64
	PagesFailed      atomic.Int64
	ItemsExtracted   atomic.Int64
	ItemsStored      atomic.Int64
	RobotsBlocked    atomic.Int64
	CheckpointsSaved atomic.Int64

	QueueDepth  atomic.Int64
	DomainsSeen atomic.Int64

	server *http.Server
	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	counters := []struct {
		name  string
		help  string
		value int64
	}{
		{"autostalk_pages_crawled_total", "Pages fetched and extracted", m.PagesCrawled.Load()},
		{"autostalk_pages_failed_total", "Pages that failed to fetch", m.PagesFailed.Load()},
		{"autostalk_items_extracted_total", "Items extracted from pages", m.ItemsExtracted.Load()},
		{"autostalk_items_stored_total", "Items written to storage", m.ItemsStored.Load()},
		{"autostalk_robots_blocked_total", "URLs skipped by robots.txt", m.RobotsBlocked.Load()},
		{"autostalk_checkpoints_saved_total", "Checkpoints persisted", m.CheckpointsSaved.Load()},
	}
	for _, c := range counters {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
		fmt.Fprintf(w, "%s %d\n", c.name, c.value)
	}

	gauges := []struct {
		name  string
		help  string
		value int64
	}{
		{"autostalk_queue_depth", "URLs pending in the frontier", m.QueueDepth.Load()},
		{"autostalk_domains_seen", "Distinct domains crawled", m.DomainsSeen.Load()},
	}
	for _, g := range gauges {
		fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", g.name)
		fmt.Fprintf(w, "%s %d\n", g.name, g.value)
	}
}

// StartServer serves /metrics and /health on addr in the background.
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	m.server = &http.Server{Addr: addr, Handler: mux}
	m.logger.Info("metrics server starting", "addr", addr)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the metrics server down. A Metrics whose server was never
// started stops cleanly.
func (m *Metrics) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages_crawled":     m.PagesCrawled.Load(),
		"pages_failed":      m.PagesFailed.Load(),
		"items_extracted":   m.ItemsExtracted.Load(),
		"items_stored":      m.ItemsStored.Load(),
		"robots_blocked":    m.RobotsBlocked.Load(),
		"checkpoints_saved": m.CheckpointsSaved.Load(),
		"queue_depth":       m.QueueDepth.Load(),
		"domains_seen":      m.DomainsSeen.Load(),
	}
}
