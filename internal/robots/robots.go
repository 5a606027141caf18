// Package robots gates crawling on robots.txt, one cached decision
// table per origin.
package robots

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/IshaanNene/AutoStalk/internal/urlutil"
)

// Robots bodies larger than this are ignored (treated as permissive).
const maxRobotsSize = 512 * 1024

const fetchTimeout = 5 * time.Second

// Gate fetches, caches, and evaluates robots.txt per origin. Fetch
// failures and non-200 statuses cache a permissive entry; robots.txt
// itself is never retried. Cache entries live for the session.
type Gate struct {
	follow bool
	client *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData // origin -> rules; nil = allow all
}

// New creates a Gate. When follow is false every URL is allowed.
func New(follow bool, logger *slog.Logger) *Gate {
	return &Gate{
		follow: follow,
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger.With("component", "robots"),
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether userAgent may fetch rawurl. An empty
// userAgent means "*".
func (g *Gate) Allowed(ctx context.Context, rawurl, userAgent string) bool {
	if !g.follow {
		return true
	}
	if userAgent == "" {
		userAgent = "*"
	}

	u, err := url.Parse(rawurl)
	if err != nil || u.Host == "" {
		// Nothing to evaluate against; let the fetcher reject it.
		return true
	}

	data := g.load(ctx, u)
	if data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, userAgent)
}

// load returns the cached rules for the URL's origin, fetching them on
// first use.
func (g *Gate) load(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	g.mu.Lock()
	data, ok := g.cache[origin]
	g.mu.Unlock()
	if ok {
		return data
	}

	data = g.fetch(ctx, origin)

	g.mu.Lock()
	g.cache[origin] = data
	g.mu.Unlock()
	return data
}

// fetch retrieves origin/robots.txt once. Any failure yields nil,
// which callers treat as allow-all.
func (g *Gate) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	robotsURL := origin + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("robots fetch failed, allowing", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Debug("robots non-200, allowing", "url", robotsURL, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		g.logger.Debug("robots read failed, allowing", "url", robotsURL, "error", err)
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		g.logger.Debug("robots parse failed, allowing", "url", robotsURL, "error", err)
		return nil
	}

	g.logger.Debug("robots cached", "origin", origin)
	return data
}

// CachedOrigins returns the origins with a cached decision table.
func (g *Gate) CachedOrigins() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	origins := make([]string, 0, len(g.cache))
	for o := range g.cache {
		origins = append(origins, o)
	}
	return origins
}

// OriginOf returns the robots cache key for a URL, mainly for tests.
func OriginOf(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil || u.Host == "" {
		return urlutil.Domain(rawurl)
	}
	return u.Scheme + "://" + u.Host
}
