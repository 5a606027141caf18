// Package engine pairs fetching with extraction and picks the cheapest
// fetch mode per page. Plain HTTP is tried first; hosts that turn out
// to need JavaScript get the headless browser, and that choice is
// remembered for the rest of the session.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/IshaanNene/AutoStalk/internal/extract"
	"github.com/IshaanNene/AutoStalk/internal/fetcher"
	"github.com/IshaanNene/AutoStalk/internal/types"
	"github.com/IshaanNene/AutoStalk/internal/urlutil"
)

// Engine orchestrates the two fetchers and the extractor.
type Engine struct {
	html      fetcher.Fetcher
	browser   fetcher.Fetcher // nil when disabled
	extractor *extract.Extractor
	modes     *ModeMemory
	stats     *Stats
	logger    *slog.Logger
}

// New creates an engine. browser may be nil, in which case every page
// is fetched over plain HTTP and no mode switching happens.
func New(html, browser fetcher.Fetcher, extractor *extract.Extractor, logger *slog.Logger) *Engine {
	return &Engine{
		html:      html,
		browser:   browser,
		extractor: extractor,
		modes:     NewModeMemory(),
		stats:     &Stats{},
		logger:    logger.With("component", "engine"),
	}
}

// Fetch retrieves a page in the given mode. Auto resolves to the host's
// remembered mode, plain HTTP otherwise. An HTTP failure falls back to
// the browser when one is available; a successful fallback records the
// browser preference for the host.
func (e *Engine) Fetch(ctx context.Context, url string, mode types.Mode) (string, types.Mode, error) {
	host := urlutil.Domain(url)

	if mode == types.ModeAuto {
		if remembered, ok := e.modes.Get(host); ok {
			mode = remembered
			e.logger.Debug("using remembered mode", "host", host, "mode", mode)
		} else {
			mode = types.ModeHTML
		}
	}

	htmlText, actual, err := e.fetchWithMode(ctx, url, mode)
	if err != nil && mode == types.ModeHTML && e.browser != nil {
		e.logger.Info("http fetch failed, switching to browser", "url", url)
		htmlText, actual, err = e.fetchWithMode(ctx, url, types.ModeBrowser)
		if err == nil {
			e.modes.Set(host, types.ModeBrowser)
			e.stats.AutoSwitches.Add(1)
			e.logger.Debug("browser mode remembered", "host", host)
		}
	}

	return htmlText, actual, err
}

// fetchWithMode runs one fetch in a fixed mode and keeps the counters.
func (e *Engine) fetchWithMode(ctx context.Context, url string, mode types.Mode) (string, types.Mode, error) {
	switch mode {
	case types.ModeHTML:
		htmlText, err := e.html.Fetch(ctx, url)
		if err != nil {
			e.stats.HTMLFailed.Add(1)
			return "", types.ModeHTML, err
		}
		e.stats.HTMLSuccess.Add(1)
		return htmlText, types.ModeHTML, nil

	case types.ModeBrowser:
		if e.browser == nil {
			return "", mode, types.ErrNoBrowser
		}
		htmlText, err := e.browser.Fetch(ctx, url)
		if err != nil {
			e.stats.BrowserFailed.Add(1)
			return "", types.ModeBrowser, err
		}
		e.stats.BrowserSuccess.Add(1)
		return htmlText, types.ModeBrowser, nil

	default:
		return "", mode, fmt.Errorf("mode %s cannot be fetched directly", mode)
	}
}

// FetchAndExtract fetches a page, extracts its items, and derives the
// next page URL from the page's pagination hint. A page that yields no
// items over plain HTTP is re-rendered in the browser when one is
// available; items found that way record the browser preference.
func (e *Engine) FetchAndExtract(ctx context.Context, url string, mode types.Mode) ([]*types.Item, string, types.Mode, error) {
	htmlText, actual, err := e.Fetch(ctx, url, mode)
	if err != nil {
		return nil, "", actual, err
	}

	items, err := e.extractor.ExtractAuto(htmlText, url)
	if err != nil {
		return nil, "", actual, err
	}

	nextURL := e.nextPage(htmlText, url)

	if len(items) == 0 && actual == types.ModeHTML && e.browser != nil {
		e.logger.Info("no items over http, rendering in browser", "url", url)

		browserHTML, _, berr := e.fetchWithMode(ctx, url, types.ModeBrowser)
		if berr == nil {
			// Any cached patterns were learned from the unrendered page.
			// Relearn them from the rendered DOM before extracting.
			if _, aerr := e.extractor.Analyze(browserHTML, url); aerr == nil {
				bitems, xerr := e.extractor.ExtractAuto(browserHTML, url)
				if xerr == nil && len(bitems) > 0 {
					host := urlutil.Domain(url)
					e.modes.Set(host, types.ModeBrowser)
					e.stats.AutoSwitches.Add(1)
					actual = types.ModeBrowser
					items = bitems
					nextURL = e.nextPage(browserHTML, url)
					e.logger.Debug("browser mode remembered", "host", host)
				}
			}
		}
	}

	return items, nextURL, actual, nil
}

// nextPage derives the next page URL from the page's own pagination
// hint. The hint is detected per page, not read from the domain cache:
// a next button's href advances with every page, so a cached hint goes
// stale after the first. Load-more hints produce no URL; there is
// nothing to follow without a driver.
func (e *Engine) nextPage(htmlText, pageURL string) string {
	hint, err := e.extractor.DetectPagination(htmlText, pageURL)
	if err != nil {
		e.logger.Warn("pagination detection failed", "url", pageURL, "error", err)
		return ""
	}
	if hint == nil {
		return ""
	}

	switch hint.Kind {
	case types.PaginationButton:
		return hint.NextURL
	case types.PaginationLinks:
		if !strings.Contains(hint.URLPattern, "{page}") {
			return ""
		}
		// Numbered pagers list low pages even deep into the chain, so
		// the page's own URL beats the smallest visible number.
		current := hint.Current
		if n, ok := pageFromURL(pageURL, hint.URLPattern); ok {
			current = n
		}
		next := strings.Replace(hint.URLPattern, "{page}", strconv.Itoa(current+1), 1)
		return urlutil.ResolveOr(pageURL, next)
	}
	return ""
}

// pageFromURL reads the page number out of a URL matching the {page}
// template. The prefix before the placeholder is resolved against the
// URL so relative templates line up with absolute page URLs.
func pageFromURL(pageURL, pattern string) (int, bool) {
	i := strings.Index(pattern, "{page}")
	if i <= 0 {
		return 0, false
	}
	prefix := urlutil.ResolveOr(pageURL, pattern[:i])
	rest, ok := strings.CutPrefix(pageURL, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	j := 0
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	if j == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:j])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Modes exposes the per-host mode memory.
func (e *Engine) Modes() *ModeMemory {
	return e.modes
}

// Stats exposes the fetch counters.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// StatsSnapshot returns the fetch counters with derived rates.
func (e *Engine) StatsSnapshot() map[string]any {
	return e.stats.Snapshot()
}

// Close shuts down both fetchers.
func (e *Engine) Close() error {
	err := e.html.Close()
	if e.browser != nil {
		if berr := e.browser.Close(); err == nil {
			err = berr
		}
	}
	return err
}
