package fetcher

import (
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/IshaanNene/AutoStalk/internal/config"
)

// proxyFailLimit is the strike count after which a proxy is skipped.
const proxyFailLimit = 3

// ProxyManager hands out proxy endpoints to both fetchers, rotating
// round_robin or random and skipping endpoints that keep failing.
type ProxyManager struct {
	proxies  []*proxyEntry
	rotation string
	index    atomic.Int64
	mu       sync.RWMutex
	logger   *slog.Logger
}

type proxyEntry struct {
	URL      *url.URL
	failures int
	lastErr  error
	mu       sync.Mutex
}

func (p *proxyEntry) healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures < proxyFailLimit
}

// NewProxyManager creates a new ProxyManager from configuration. Returns nil
// when the proxy section is disabled or empty; both fetchers treat a nil
// manager as direct connection.
func NewProxyManager(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyManager {
	if !cfg.Enabled || len(cfg.URLs) == 0 {
		return nil
	}

	pm := &ProxyManager{
		proxies:  make([]*proxyEntry, 0, len(cfg.URLs)),
		rotation: cfg.Rotation,
		logger:   logger.With("component", "proxy_manager"),
	}

	for _, rawURL := range cfg.URLs {
		u, err := url.Parse(rawURL)
		if err != nil {
			pm.logger.Warn("invalid proxy URL", "url", rawURL, "error", err)
			continue
		}
		pm.proxies = append(pm.proxies, &proxyEntry{URL: u})
	}
	if len(pm.proxies) == 0 {
		return nil
	}

	pm.logger.Info("proxy manager initialized", "count", len(pm.proxies), "rotation", cfg.Rotation)
	return pm
}

// ProxyFunc returns an http.Transport-compatible proxy function.
func (pm *ProxyManager) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		return pm.HTTPProxy(), nil // nil proxy = direct connection
	}
}

// HTTPProxy returns the next proxy URL for the HTTP transport, or nil when
// none are usable.
func (pm *ProxyManager) HTTPProxy() *url.URL {
	if pm == nil {
		return nil
	}
	entry := pm.next()
	if entry == nil {
		return nil
	}
	return entry.URL
}

// BrowserProxy returns the next proxy server address for the browser
// launcher, or "" when none are usable.
func (pm *ProxyManager) BrowserProxy() string {
	if pm == nil {
		return ""
	}
	entry := pm.next()
	if entry == nil {
		return ""
	}
	return entry.URL.String()
}

// next picks a proxy by the rotation strategy, considering only entries
// under the strike limit.
func (pm *ProxyManager) next() *proxyEntry {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	healthy := make([]*proxyEntry, 0, len(pm.proxies))
	for _, p := range pm.proxies {
		if p.healthy() {
			healthy = append(healthy, p)
		}
	}
	if len(healthy) == 0 {
		return nil
	}

	switch pm.rotation {
	case "random":
		return healthy[rand.Intn(len(healthy))]
	default: // round_robin
		idx := pm.index.Add(1) % int64(len(healthy))
		return healthy[idx]
	}
}

// MarkFailed records a strike against a proxy. Three strikes take it out of
// rotation until MarkHealthy.
func (pm *ProxyManager) MarkFailed(proxyURL *url.URL, err error) {
	if pm == nil || proxyURL == nil {
		return
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, p := range pm.proxies {
		if p.URL.String() != proxyURL.String() {
			continue
		}
		p.mu.Lock()
		p.failures++
		p.lastErr = err
		out := p.failures >= proxyFailLimit
		p.mu.Unlock()
		if out {
			pm.logger.Warn("proxy out of rotation", "proxy", proxyURL.Host, "error", err)
		}
		return
	}
}

// MarkHealthy clears a proxy's strikes.
func (pm *ProxyManager) MarkHealthy(proxyURL *url.URL) {
	if pm == nil || proxyURL == nil {
		return
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, p := range pm.proxies {
		if p.URL.String() != proxyURL.String() {
			continue
		}
		p.mu.Lock()
		p.failures = 0
		p.lastErr = nil
		p.mu.Unlock()
		return
	}
}

// Count returns the total number of proxies.
func (pm *ProxyManager) Count() int {
	if pm == nil {
		return 0
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.proxies)
}

// HealthyCount returns the number of proxies still in rotation.
func (pm *ProxyManager) HealthyCount() int {
	if pm == nil {
		return 0
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	n := 0
	for _, p := range pm.proxies {
		if p.healthy() {
			n++
		}
	}
	return n
}
