package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/internal/types"
)

// BrowserFetcher implements Fetcher using a headless browser via Rod. Every
// Fetch launches a fresh browser and tears it down afterwards, so no state
// leaks between navigations. Render failures are returned as-is and never
// retried; the caller decides what a dead render means.
type BrowserFetcher struct {
	cfg      *config.CrawlerConfig
	creds    *Credentials
	proxy    *ProxyManager
	headless bool
	logger   *slog.Logger
}

// BrowserOption configures the BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithProxy sets the proxy manager consulted at each launch.
func WithProxy(pm *ProxyManager) BrowserOption {
	return func(bf *BrowserFetcher) { bf.proxy = pm }
}

// WithCookies sets login cookies installed scoped to the target URL.
func WithCookies(creds *Credentials) BrowserOption {
	return func(bf *BrowserFetcher) { bf.creds = creds }
}

// WithHeadless toggles headless mode (on by default).
func WithHeadless(headless bool) BrowserOption {
	return func(bf *BrowserFetcher) { bf.headless = headless }
}

// NewBrowserFetcher creates a new headless browser fetcher.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger, opts ...BrowserOption) *BrowserFetcher {
	bf := &BrowserFetcher{
		cfg:      &cfg.Crawler,
		headless: true,
		logger:   logger.With("component", "browser_fetcher"),
	}
	for _, opt := range opts {
		opt(bf)
	}
	return bf
}

// Fetch navigates to a URL in a fresh browser and returns the rendered DOM
// serialized as HTML once the network has gone idle.
func (bf *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	start := time.Now()
	timeout := bf.cfg.Timeout()

	browser, cleanup, err := bf.launch()
	if err != nil {
		return "", &types.FetchError{URL: url, Err: err}
	}
	defer cleanup()

	page, err := stealth.Page(browser)
	if err != nil {
		return "", &types.FetchError{URL: url, Err: fmt.Errorf("stealth page: %w", err)}
	}
	page = page.Context(ctx)

	if ua := bf.cfg.UserAgent; ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}
	if err := bf.installCookies(page, url); err != nil {
		bf.logger.Warn("failed to set cookies", "url", url, "error", err)
	}
	if bf.creds != nil && len(bf.creds.Headers) > 0 {
		headers := make([]string, 0, len(bf.creds.Headers)*2)
		for k, v := range bf.creds.Headers {
			headers = append(headers, k, v)
		}
		_, _ = page.SetExtraHeaders(headers)
	}

	if err := page.Timeout(timeout).Navigate(url); err != nil {
		return "", &types.FetchError{URL: url, Err: fmt.Errorf("navigate: %w", err)}
	}
	// networkidle: no outstanding requests for 500ms, bounded by the page budget
	page.Timeout(timeout).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()

	html, err := page.HTML()
	if err != nil {
		return "", &types.FetchError{URL: url, Err: fmt.Errorf("serialize dom: %w", err)}
	}

	bf.logger.Debug("browser fetch complete",
		"url", url,
		"size", len(html),
		"duration", time.Since(start),
	)
	return html, nil
}

// launch starts a Chromium instance and connects to it. The returned cleanup
// closes the browser and kills the launcher process.
func (bf *BrowserFetcher) launch() (*rod.Browser, func(), error) {
	l := launcher.New().
		Headless(bf.headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-features", "IsolateOrigins,site-per-process").
		Set("disable-blink-features", "AutomationControlled")

	if bf.proxy != nil {
		if server := bf.proxy.BrowserProxy(); server != "" {
			l = l.Proxy(server)
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("connect browser: %w", err)
	}
	cleanup := func() {
		_ = browser.Close()
		l.Kill()
	}
	return browser, cleanup, nil
}

// installCookies scopes the login cookies to the target URL.
func (bf *BrowserFetcher) installCookies(page *rod.Page, url string) error {
	if bf.creds == nil || len(bf.creds.Cookies) == 0 {
		return nil
	}
	cookies := make([]*proto.NetworkCookieParam, 0, len(bf.creds.Cookies))
	for name, value := range bf.creds.Cookies {
		cookies = append(cookies, &proto.NetworkCookieParam{
			Name:  name,
			Value: value,
			URL:   url,
		})
	}
	return page.SetCookies(cookies)
}

// Close releases resources. Browsers are per-call, so nothing is held.
func (bf *BrowserFetcher) Close() error {
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
