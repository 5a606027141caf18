// Package crawl runs crawl sessions: the FIFO frontier, robots gate,
// per-host rate limits, page/depth/domain caps, progress reporting and
// checkpointing composed around the dual-mode engine.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/internal/observability"
	"github.com/IshaanNene/AutoStalk/internal/queue"
	"github.com/IshaanNene/AutoStalk/internal/robots"
	"github.com/IshaanNene/AutoStalk/internal/types"
	"github.com/IshaanNene/AutoStalk/internal/urlutil"
)

// Engine is what the crawl loop needs from the dual-mode fetch engine.
type Engine interface {
	FetchAndExtract(ctx context.Context, url string, mode types.Mode) ([]*types.Item, string, types.Mode, error)
	StatsSnapshot() map[string]any
}

// Handler drives one crawl session over an engine.
type Handler struct {
	cfg     *config.Config
	engine  Engine
	queue   *queue.Queue
	robots  *robots.Gate
	limiter *HostLimiter
	logger  *slog.Logger

	mu      sync.Mutex
	session *Session

	metrics        *observability.Metrics
	resultSink     ResultSink
	progressSink   ProgressSink
	checkpointSink CheckpointSink
}

// New creates a Handler. A nil cfg gets the defaults.
func New(eng Engine, cfg *config.Config, logger *slog.Logger) (*Handler, error) {
	if eng == nil {
		return nil, errors.New("crawl: nil engine")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handler{
		cfg:     cfg,
		engine:  eng,
		queue:   queue.New(),
		robots:  robots.New(cfg.Crawler.FollowRobots, logger),
		limiter: NewHostLimiter(cfg.Crawler.HostInterval()),
		logger:  logger.With("component", "crawl"),
	}, nil
}

// SetResultSink registers the per-item callback.
func (h *Handler) SetResultSink(sink ResultSink) { h.resultSink = sink }

// SetProgressSink registers the per-page progress callback.
func (h *Handler) SetProgressSink(sink ProgressSink) { h.progressSink = sink }

// SetCheckpointSink registers the checkpoint writer.
func (h *Handler) SetCheckpointSink(sink CheckpointSink) { h.checkpointSink = sink }

// SetMetrics registers crawl counters. A nil Metrics is fine.
func (h *Handler) SetMetrics(m *observability.Metrics) { h.metrics = m }

// Crawl starts a new session over startURLs, or continues the current
// one when it is paused or was restored from a checkpoint (startURLs
// may be nil then). It returns when the queue is empty, a limit is hit,
// the session is paused or stopped, or ctx is cancelled.
func (h *Handler) Crawl(ctx context.Context, startURLs []string, mode types.Mode) (*types.Summary, error) {
	s, err := h.begin(startURLs, h.cfg.MaxPages, 0)
	if err != nil {
		return nil, err
	}
	return h.run(ctx, s, mode, 0)
}

// CrawlMultiDomain crawls seeds from several hosts with a per-host page
// cap. The page target is len(startURLs) * maxPagesPerDomain; popped
// URLs whose host is at cap are skipped, and next-page URLs for capped
// hosts are not enqueued. The summary carries per-host counts.
func (h *Handler) CrawlMultiDomain(ctx context.Context, startURLs []string, mode types.Mode, maxPagesPerDomain int) (*types.Summary, error) {
	if maxPagesPerDomain < 1 {
		maxPagesPerDomain = h.cfg.MaxPagesPerDomain
	}
	s, err := h.begin(startURLs, len(startURLs)*maxPagesPerDomain, maxPagesPerDomain)
	if err != nil {
		return nil, err
	}
	return h.run(ctx, s, mode, maxPagesPerDomain)
}

// Pause asks the loop to exit at the next iteration boundary with all
// state intact. It reports whether the session was running.
func (h *Handler) Pause() bool {
	if s := h.currentSession(); s != nil {
		return s.Pause()
	}
	return false
}

// Resume moves a paused session back to running. The loop itself is
// restarted by calling Crawl again.
func (h *Handler) Resume() bool {
	if s := h.currentSession(); s != nil {
		return s.Resume()
	}
	return false
}

// Stop ends the session. Stopped is terminal; a stopped handler cannot
// crawl again.
func (h *Handler) Stop() bool {
	if s := h.currentSession(); s != nil {
		return s.Stop()
	}
	return false
}

// State reports the current session state. A handler with no session
// yet reports Stopped.
func (h *Handler) State() State {
	if s := h.currentSession(); s != nil {
		return s.State()
	}
	return StateStopped
}

func (h *Handler) currentSession() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// begin creates or continues the session and seeds the queue.
func (h *Handler) begin(seeds []string, pagesTotal, perDomainCap int) (*Session, error) {
	for _, u := range seeds {
		if !urlutil.IsFetchable(u) {
			return nil, fmt.Errorf("start url %q: %w", u, types.ErrInvalidURL)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session != nil {
		switch h.session.State() {
		case StateRunning:
			return nil, errors.New("crawl already running")
		case StateStopped:
			return nil, fmt.Errorf("session %s: %w", h.session.ID, types.ErrCrawlStopped)
		case StatePaused:
			h.session.Resume()
		}
		if h.session.pagesTotal == 0 {
			h.session.pagesTotal = pagesTotal
		}
	} else {
		if len(seeds) == 0 {
			return nil, errors.New("no start urls")
		}
		h.session = newSession(newSessionID(time.Now()), pagesTotal)
	}

	s := h.session
	if perDomainCap > 0 && s.domainCounts == nil {
		s.domainCounts = make(map[string]int)
	}

	for _, u := range seeds {
		h.queue.Add(u, "")
		host := urlutil.Domain(u)
		s.domains[host] = struct{}{}
		if perDomainCap > 0 {
			if _, ok := s.domainCounts[host]; !ok {
				s.domainCounts[host] = 0
			}
		}
	}
	return s, nil
}

// run is the crawl loop shared by both entry points. perDomainCap 0
// disables per-host gating.
func (h *Handler) run(ctx context.Context, s *Session, mode types.Mode, perDomainCap int) (*types.Summary, error) {
	h.logger.Info("crawl session started",
		"session", s.ID,
		"pages_total", s.pagesTotal,
		"mode", mode.String(),
		"queued", h.queue.Size())

	for s.State() == StateRunning && h.queue.HasNext() {
		if ctx.Err() != nil {
			s.Stop()
			break
		}
		if s.pagesTotal > 0 && s.pagesCrawled >= s.pagesTotal {
			h.logger.Info("page limit reached", "limit", s.pagesTotal)
			break
		}
		if h.cfg.MaxDomains > 0 && len(s.domains) > h.cfg.MaxDomains {
			h.logger.Info("domain limit reached", "limit", h.cfg.MaxDomains)
			break
		}

		url, ok := h.queue.Pop()
		if !ok {
			break
		}
		if s.isVisited(url) {
			continue
		}
		if h.cfg.MaxDepth > 0 && h.queue.Depth(url) > h.cfg.MaxDepth {
			h.logger.Debug("depth limit", "url", url, "depth", h.queue.Depth(url))
			continue
		}
		if !urlutil.IsAllowedExtension(url, h.cfg.DomainCrawler.ExcludeExtensions) {
			h.logger.Debug("excluded extension", "url", url)
			continue
		}

		host := urlutil.Domain(url)
		if perDomainCap > 0 && s.domainCounts[host] >= perDomainCap {
			continue
		}

		if !h.robots.Allowed(ctx, url, h.cfg.Crawler.UserAgent) {
			h.logger.Info("blocked by robots.txt", "url", url)
			if h.metrics != nil {
				h.metrics.RobotsBlocked.Add(1)
			}
			continue
		}

		if err := h.limiter.Wait(ctx, host); err != nil {
			s.Stop()
			break
		}

		items, nextURL, _, err := h.engine.FetchAndExtract(ctx, url, mode)
		if err != nil {
			h.logger.Warn("page failed", "url", url, "error", err)
			s.errors++
			if h.metrics != nil {
				h.metrics.PagesFailed.Add(1)
			}
			continue
		}

		s.visited[url] = struct{}{}
		s.pagesCrawled++
		s.domains[host] = struct{}{}
		if perDomainCap > 0 {
			s.domainCounts[host]++
		}

		if len(items) > 0 {
			s.itemsExtracted += len(items)
			if h.resultSink != nil {
				depth := h.queue.Depth(url)
				for _, item := range items {
					item.Depth = depth
					h.resultSink(item)
				}
			}
		}

		if nextURL != "" && !s.isVisited(nextURL) {
			if perDomainCap == 0 || s.domainCounts[urlutil.Domain(nextURL)] < perDomainCap {
				h.queue.Add(nextURL, url)
			}
		}

		if h.metrics != nil {
			h.metrics.PagesCrawled.Add(1)
			h.metrics.ItemsExtracted.Add(int64(len(items)))
			h.metrics.QueueDepth.Store(int64(h.queue.Size()))
			h.metrics.DomainsSeen.Store(int64(len(s.domains)))
		}

		h.reportProgress(s)

		if h.cfg.CheckpointInterval > 0 && s.pagesCrawled%h.cfg.CheckpointInterval == 0 {
			h.checkpoint(s)
		}
	}

	// Queue depletion and limit breaks end the session; a pause leaves
	// it continuable.
	if s.State() == StateRunning {
		s.Stop()
	}

	h.checkpoint(s)

	sum := h.summary(s, perDomainCap > 0)
	h.logSummary(sum)
	return sum, nil
}

// summary renders the session counters. multi adds per-host counts.
func (h *Handler) summary(s *Session, multi bool) *types.Summary {
	elapsed := time.Since(s.startTime).Seconds()
	pps := 0.0
	if elapsed > 0 {
		pps = float64(s.pagesCrawled) / elapsed
	}
	successRate := 0.0
	if s.pagesCrawled > 0 {
		successRate = float64(s.pagesCrawled-s.errors) / float64(s.pagesCrawled)
	}

	sum := &types.Summary{
		SessionID:      s.ID,
		PagesCrawled:   s.pagesCrawled,
		PagesTotal:     s.pagesTotal,
		ItemsExtracted: s.itemsExtracted,
		Errors:         s.errors,
		DomainsCrawled: len(s.domains),
		ElapsedSeconds: elapsed,
		PagesPerSecond: pps,
		SuccessRate:    successRate,
		EngineStats:    h.engine.StatsSnapshot(),
	}
	if multi {
		counts := make(map[string]int, len(s.domainCounts))
		for d, c := range s.domainCounts {
			counts[d] = c
		}
		sum.DomainCounts = counts
	}
	return sum
}

func (h *Handler) logSummary(sum *types.Summary) {
	h.logger.Info("crawl complete",
		"session", sum.SessionID,
		"pages", fmt.Sprintf("%d/%d", sum.PagesCrawled, sum.PagesTotal),
		"items", sum.ItemsExtracted,
		"errors", sum.Errors,
		"domains", sum.DomainsCrawled,
		"elapsed", fmt.Sprintf("%.1fs", sum.ElapsedSeconds),
		"pages_per_sec", fmt.Sprintf("%.2f", sum.PagesPerSecond),
		"success_rate", fmt.Sprintf("%.1f%%", sum.SuccessRate*100))
}
