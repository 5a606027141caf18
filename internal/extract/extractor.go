// Package extract turns detected page patterns into clean data items.
// The extractor keeps one PatternSet per domain so a listing site is
// analyzed once and every further page reuses the learned selectors.
package extract

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/internal/detect"
	"github.com/IshaanNene/AutoStalk/internal/pipeline"
	"github.com/IshaanNene/AutoStalk/internal/types"
	"github.com/IshaanNene/AutoStalk/internal/urlutil"
)

// Extractor extracts structured items from HTML using the patterns the
// detector found. Safe for concurrent use.
type Extractor struct {
	detector *detect.Detector
	rules    []compiledRule

	logger *slog.Logger

	// baseLogger feeds the per-page cleaning pipelines so their log
	// lines carry their own component tag instead of the extractor's.
	baseLogger *slog.Logger

	mu       sync.RWMutex
	patterns map[string]*types.PatternSet
}

// NewExtractor creates an extractor around the given detector. Custom
// field rules from the config are compiled once up front; a selector or
// pattern that does not compile fails construction.
func NewExtractor(detector *detect.Detector, cfg config.ExtractConfig, logger *slog.Logger) (*Extractor, error) {
	rules, err := compileRules(cfg.CustomFields)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		detector:   detector,
		rules:      rules,
		logger:     logger.With("component", "extractor"),
		baseLogger: logger,
		patterns:   make(map[string]*types.PatternSet),
	}, nil
}

// ExtractAuto extracts items from one page. The domain's cached
// PatternSet is used when present; otherwise the page is analyzed and
// the result cached for the rest of the crawl.
func (e *Extractor) ExtractAuto(htmlText, pageURL string) ([]*types.Item, error) {
	domain := urlutil.Domain(pageURL)

	ps := e.Patterns(domain)
	if ps == nil {
		var err error
		ps, err = e.Analyze(htmlText, pageURL)
		if err != nil {
			return nil, err
		}
	}

	items, err := e.extractWithPatterns(htmlText, pageURL, ps)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("extracted items", "url", pageURL, "count", len(items))
	return items, nil
}

// Analyze runs the detector on a page and caches the resulting
// PatternSet under the page's domain, replacing any previous entry.
func (e *Extractor) Analyze(htmlText, pageURL string) (*types.PatternSet, error) {
	ps, err := e.detector.Analyze(htmlText, pageURL)
	if err != nil {
		return nil, err
	}
	e.SetPatterns(urlutil.Domain(pageURL), ps)
	return ps, nil
}

// DetectPagination finds the pagination hint on one page, leaving the
// domain's cached PatternSet untouched. Container patterns hold for a
// whole site, but next-page anchors change from page to page.
func (e *Extractor) DetectPagination(htmlText, pageURL string) (*types.PaginationHint, error) {
	return e.detector.Pagination(htmlText, pageURL)
}

// extractWithPatterns pulls one item per element matching the best
// container selector, then runs the page's items through the cleaning
// chain. A pattern set without containers yields no items and no error.
func (e *Extractor) extractWithPatterns(htmlText, pageURL string, ps *types.PatternSet) ([]*types.Item, error) {
	best := ps.Best()
	if best == nil {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}

	// The dedup stage is per page, so each page gets a fresh chain.
	clean := pipeline.NewCleaning(e.baseLogger)

	var items []*types.Item
	doc.Find(best.Selector).Each(func(_ int, container *goquery.Selection) {
		item := e.buildItem(container, pageURL, ps.ContentStructure, best)

		cleaned, err := clean.Process(item)
		if err != nil {
			e.logger.Warn("cleaning failed", "url", pageURL, "error", err)
			return
		}
		if cleaned != nil {
			items = append(items, cleaned)
		}
	})

	return items, nil
}

// buildItem assembles one raw item from a container element: learned
// structure selectors and heuristics first, then dynamically inferred
// fields, then custom rules. Earlier stages win on key conflicts.
func (e *Extractor) buildItem(container *goquery.Selection, pageURL string, structure map[string]string, best *types.ContainerCandidate) *types.Item {
	item := e.detector.Sample(container, pageURL, structure)

	inferFields(item, container, pageURL)
	e.applyRules(item, container)

	item.Set(types.MetaKey, map[string]string{
		"selector":  best.Selector,
		"signature": best.Signature,
	})
	return item
}

// Patterns returns the cached PatternSet for a domain, or nil.
func (e *Extractor) Patterns(domain string) *types.PatternSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.patterns[domain]
}

// SetPatterns stores the PatternSet for a domain.
func (e *Extractor) SetPatterns(domain string, ps *types.PatternSet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.patterns[domain] = ps
}

// ClearPatterns drops the cached PatternSet for a domain. An empty
// domain clears the whole cache.
func (e *Extractor) ClearPatterns(domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if domain == "" {
		clear(e.patterns)
		return
	}
	delete(e.patterns, domain)
}
