// Package detect finds repeating structures, pagination and
// infinite-scroll hints in a page without any user-supplied selectors.
package detect

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/internal/types"
	"github.com/IshaanNene/AutoStalk/internal/urlutil"
)

const (
	defaultMinRepeats = 3
	defaultMaxSamples = 5
)

// Detector clusters a page's elements by structural signature and turns
// the repeating clusters into scored container candidates.
type Detector struct {
	minRepeats int
	maxSamples int
	logger     *slog.Logger
}

// NewDetector creates a Detector with the given clustering thresholds.
// Zero values fall back to the defaults (3 repeats, 5 samples).
func NewDetector(cfg config.DetectorConfig, logger *slog.Logger) *Detector {
	minRepeats := cfg.MinRepeats
	if minRepeats < 2 {
		minRepeats = defaultMinRepeats
	}
	maxSamples := cfg.MaxSamples
	if maxSamples < 1 {
		maxSamples = defaultMaxSamples
	}
	return &Detector{
		minRepeats: minRepeats,
		maxSamples: maxSamples,
		logger:     logger.With("component", "detector"),
	}
}

// Analyze inspects rendered HTML and returns the detected patterns:
// container candidates sorted by score, an optional pagination hint,
// infinite-scroll indicators, and the relative content structure of the
// best container. The same HTML and URL always produce the same result.
func (d *Detector) Analyze(htmlText, pageURL string) (*types.PatternSet, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}

	ps := &types.PatternSet{
		Containers:     d.detectContainers(doc, pageURL),
		Pagination:     d.detectPagination(doc, pageURL),
		InfiniteScroll: d.detectInfiniteScroll(doc, htmlText),
	}
	if best := ps.Best(); best != nil {
		ps.ContentStructure = d.contentStructure(doc, best.Selector)
	}

	d.logger.Debug("page analyzed",
		"url", pageURL,
		"containers", len(ps.Containers),
		"pagination", ps.Pagination != nil,
		"infinite_scroll", ps.InfiniteScroll != nil)

	return ps, nil
}

// detectContainers buckets every element by signature and keeps the
// clusters that repeat enough and are neither inline nor leaf elements.
func (d *Detector) detectContainers(doc *goquery.Document, pageURL string) []types.ContainerCandidate {
	clusters := clusterBySignature(doc.Get(0))

	var candidates []types.ContainerCandidate
	for sig, cl := range clusters {
		if cl.count < d.minRepeats {
			continue
		}
		if inlineTags[cl.first.Data] || strings.HasSuffix(sig, "|leaf") {
			continue
		}

		sample := d.Sample(doc.FindNodes(cl.first), pageURL, nil)
		candidates = append(candidates, types.ContainerCandidate{
			Selector:  selectorFor(cl.first),
			Signature: sig,
			Count:     cl.count,
			Score:     scoreContainer(sample, cl.count),
			Sample:    sample,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Signature < b.Signature
	})

	return candidates
}

// Sample extracts the canonical fields (title, link, image, price,
// description) from one container element. structure holds learned
// relative selectors tried before the heuristics; pass nil to run the
// heuristics alone.
func (d *Detector) Sample(container *goquery.Selection, pageURL string, structure map[string]string) *types.Item {
	item := types.NewItem(pageURL)
	fillFromStructure(item, container, pageURL, structure)

	if !item.Has(types.FieldTitle) {
		if v := findTitle(container); v != "" {
			item.Set(types.FieldTitle, v)
		}
	}
	if !item.Has(types.FieldLink) {
		if v := findLink(container, pageURL); v != "" {
			item.Set(types.FieldLink, v)
		}
	}
	if !item.Has(types.FieldImage) {
		if v := findImage(container, pageURL); v != "" {
			item.Set(types.FieldImage, v)
		}
	}
	if !item.Has(types.FieldPrice) {
		if v := findPrice(container); v != "" {
			item.Set(types.FieldPrice, v)
		}
	}
	if v := findDescription(container); v != "" {
		item.Set(types.FieldDescription, v)
	}

	return item
}

// fillFromStructure fills fields via the learned relative selectors.
// Descriptions are always heuristic; the structure map never holds one.
func fillFromStructure(item *types.Item, container *goquery.Selection, pageURL string, structure map[string]string) {
	if len(structure) == 0 {
		return
	}
	if sel := structure[types.FieldTitle]; sel != "" {
		if text := strings.TrimSpace(container.Find(sel).First().Text()); text != "" {
			item.Set(types.FieldTitle, text)
		}
	}
	if sel := structure[types.FieldLink]; sel != "" {
		if href, ok := container.Find(sel).First().Attr("href"); ok && href != "" {
			item.Set(types.FieldLink, urlutil.ResolveOr(pageURL, href))
		}
	}
	if sel := structure[types.FieldImage]; sel != "" {
		img := container.Find(sel).First()
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := img.Attr(attr); ok && v != "" {
				item.Set(types.FieldImage, urlutil.ResolveOr(pageURL, v))
				break
			}
		}
	}
	if sel := structure[types.FieldPrice]; sel != "" {
		if text := strings.TrimSpace(container.Find(sel).First().Text()); text != "" {
			item.Set(types.FieldPrice, text)
		}
	}
}

// scoreContainer weighs how much a cluster looks like a listing. Bigger
// clusters score higher, capped at 20 repeats, and each extracted field
// adds a fixed bonus with titles and links counting most.
func scoreContainer(sample *types.Item, count int) float64 {
	score := float64(10 * min(count, 20))
	if sample.Has(types.FieldTitle) {
		score += 100
	}
	if sample.Has(types.FieldLink) {
		score += 50
	}
	if sample.Has(types.FieldPrice) {
		score += 30
	}
	if sample.Has(types.FieldImage) {
		score += 20
	}
	if sample.Has(types.FieldDescription) {
		score += 10
	}
	return score
}
