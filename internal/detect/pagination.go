package detect

import (
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/AutoStalk/internal/types"
	"github.com/IshaanNene/AutoStalk/internal/urlutil"
)

// nextKeywords mark anchors leading to the next result page. English
// and Vietnamese words plus the usual arrow glyphs.
var nextKeywords = []string{
	"next", "tiếp", "sau", "→", "›", "»",
	"page", "trang", "pag", "pagination",
	"load more", "xem thêm", "see more",
}

// loadMoreKeywords mark click targets that append results in place.
var loadMoreKeywords = []string{"load more", "xem thêm", "see more", "load-more"}

// Pagination detects the page's pagination hint alone, skipping the
// container clustering Analyze performs. Nothing is cached.
func (d *Detector) Pagination(htmlText, pageURL string) (*types.PaginationHint, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}
	return d.detectPagination(doc, pageURL), nil
}

// detectPagination tries the three pagination shapes in order: an
// explicit next button, numbered page links, then a load-more trigger.
// The first hit wins.
func (d *Detector) detectPagination(doc *goquery.Document, pageURL string) *types.PaginationHint {
	if hint := findNextButton(doc, pageURL); hint != nil {
		return hint
	}
	if hint := findPageLinks(doc); hint != nil {
		return hint
	}
	return findLoadMore(doc)
}

// findNextButton scans anchors in document order for next-page wording
// in their text, class, id or rel.
func findNextButton(doc *goquery.Document, pageURL string) *types.PaginationHint {
	var hint *types.PaginationHint
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		hay := anchorHaystack(a)
		for _, kw := range nextKeywords {
			if strings.Contains(hay, kw) {
				href, _ := a.Attr("href")
				hint = &types.PaginationHint{
					Kind:     types.PaginationButton,
					NextURL:  urlutil.ResolveOr(pageURL, href),
					Selector: selectorFor(a.Get(0)),
				}
				return false
			}
		}
		return true
	})
	return hint
}

// findPageLinks collects anchors whose text is a bare page number and
// derives a {page} URL template from the first two numbered links.
func findPageLinks(doc *goquery.Document) *types.PaginationHint {
	type pageLink struct {
		page int
		href string
	}
	var links []pageLink

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		if !isDigits(text) {
			return
		}
		page, err := strconv.Atoi(text)
		if err != nil {
			return
		}
		href, _ := a.Attr("href")
		links = append(links, pageLink{page: page, href: href})
	})
	if len(links) < 2 {
		return nil
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].page != links[j].page {
			return links[i].page < links[j].page
		}
		return links[i].href < links[j].href
	})

	hint := &types.PaginationHint{
		Kind:       types.PaginationLinks,
		URLPattern: urlPattern(links[0].href, links[1].href),
		Current:    links[0].page,
		KnownPages: make([]int, 0, len(links)),
	}
	for _, l := range links {
		hint.KnownPages = append(hint.KnownPages, l.page)
	}
	return hint
}

// findLoadMore scans buttons, anchors and divs for load-more wording.
func findLoadMore(doc *goquery.Document) *types.PaginationHint {
	var hint *types.PaginationHint
	doc.Find("button, a, div").EachWithBreak(func(_ int, e *goquery.Selection) bool {
		text := strings.TrimSpace(e.Text())
		class, _ := e.Attr("class")
		id, _ := e.Attr("id")
		hay := strings.ToLower(text + " " + class + " " + id)
		for _, kw := range loadMoreKeywords {
			if strings.Contains(hay, kw) {
				hint = &types.PaginationHint{
					Kind:     types.PaginationLoadMore,
					Selector: selectorFor(e.Get(0)),
				}
				return false
			}
		}
		return true
	})
	return hint
}

// anchorHaystack lowercases the text and identifying attributes of an
// anchor for keyword matching.
func anchorHaystack(a *goquery.Selection) string {
	text := strings.TrimSpace(a.Text())
	class, _ := a.Attr("class")
	id, _ := a.Attr("id")
	rel, _ := a.Attr("rel")
	return strings.ToLower(text + " " + class + " " + id + " " + rel)
}

// urlPattern derives a templated URL from two numbered page links by
// cutting at the first divergent character. When one link is a prefix
// of the other the common prefix is returned as is.
func urlPattern(a, b string) string {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i] + "{page}"
		}
	}
	return a[:n]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
