package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/AutoStalk/internal/types"
	"github.com/IshaanNene/AutoStalk/internal/urlutil"
)

// maxInferDepth bounds how far below the container inference looks.
const maxInferDepth = 2

// canonicalKeys are the field names the extractor owns. Inference never
// writes them.
var canonicalKeys = map[string]bool{
	types.FieldTitle:       true,
	types.FieldLink:        true,
	types.FieldImage:       true,
	types.FieldPrice:       true,
	types.FieldDescription: true,
}

// keyAttrs are the attributes mined for key hints, in priority order.
var keyAttrs = []string{
	"class", "id", "itemprop", "aria-label",
	"data-name", "data-field", "data-type", "data-category", "data-meta",
}

// synonymKeys folds common hint tokens onto one field name.
var synonymKeys = map[string]string{
	"author":    "author",
	"byline":    "author",
	"writer":    "author",
	"posted_by": "author",
	"time":      "time",
	"date":      "date",
	"datetime":  "date",
	"published": "date",
	"updated":   "updated",
	"category":  "category",
	"cat":       "category",
	"section":   "category",
	"tag":       "tag",
	"tags":      "tag",
	"label":     "label",
	"badge":     "badge",
	"subtitle":  "subtitle",
	"summary":   "summary",
	"excerpt":   "summary",
	"rating":    "rating",
	"reviews":   "reviews",
	"comment":   "comments",
	"comments":  "comments",
	"meta":      "meta",
}

// keyPrefixes reduce compound tokens like "author_name" to their head.
var keyPrefixes = []string{
	"author_", "date_", "time_", "category_", "tag_", "label_", "badge_",
}

// tagDefaultKeys name fields for elements that carry no usable hint
// attribute but whose tag alone is meaningful.
var tagDefaultKeys = map[string]string{
	"time":  "date",
	"label": "label",
	"small": "meta",
}

var nonKeyChars = regexp.MustCompile(`[^a-z0-9]+`)

// inferFields adds fields whose names come from DOM hints (class, id,
// itemprop, aria and data attributes) instead of a fixed schema. Only
// shallow descendants of the container are considered; the first value
// per key wins and canonical fields are never touched.
func inferFields(item *types.Item, container *goquery.Selection, pageURL string) {
	root := container.Get(0)
	container.Find("*").Each(func(_ int, s *goquery.Selection) {
		if nodeDepth(s.Get(0), root) > maxInferDepth {
			return
		}
		key := inferKey(s)
		if key == "" || canonicalKeys[key] || item.Has(key) {
			return
		}
		if value := nodeValue(s, pageURL); value != "" {
			item.Set(key, value)
		}
	})
}

// inferKey guesses a snake_case field name for a node from its hint
// attributes. Exact synonyms win, then known prefixes, then the first
// hint token, then a per-tag default.
func inferKey(s *goquery.Selection) string {
	var first string
	for _, attr := range keyAttrs {
		val := s.AttrOr(attr, "")
		if val == "" {
			continue
		}
		for _, raw := range strings.Fields(val) {
			tok := normalizeKeyToken(raw)
			if tok == "" {
				continue
			}
			if mapped, ok := synonymKeys[tok]; ok {
				return mapped
			}
			for _, prefix := range keyPrefixes {
				if strings.HasPrefix(tok, prefix) {
					return strings.TrimSuffix(prefix, "_")
				}
			}
			if first == "" {
				first = tok
			}
		}
	}
	if first != "" {
		return first
	}
	return tagDefaultKeys[goquery.NodeName(s)]
}

func normalizeKeyToken(raw string) string {
	tok := nonKeyChars.ReplaceAllString(strings.ToLower(raw), "_")
	return strings.Trim(tok, "_")
}

// nodeValue pulls the natural value out of an element: image sources and
// short links resolve to absolute URLs, time and meta elements yield
// their machine-readable attributes, everything else yields its text.
func nodeValue(s *goquery.Selection, pageURL string) string {
	switch goquery.NodeName(s) {
	case "img":
		for _, attr := range []string{"src", "data-src", "data-lazy", "data-original"} {
			if v := firstToken(s.AttrOr(attr, "")); v != "" {
				return urlutil.ResolveOr(pageURL, v)
			}
		}
	case "a":
		if href := s.AttrOr("href", ""); href != "" {
			text := strings.TrimSpace(s.Text())
			if text == "" || utf8.RuneCountInString(text) < 3 {
				return urlutil.ResolveOr(pageURL, href)
			}
			return text
		}
	case "time":
		if v := s.AttrOr("datetime", ""); v != "" {
			return v
		}
	case "meta":
		if v := strings.TrimSpace(s.AttrOr("content", "")); v != "" {
			return v
		}
	}
	return strings.TrimSpace(s.Text())
}

// nodeDepth counts parent hops from n up to root.
func nodeDepth(n, root *html.Node) int {
	depth := 0
	for cur := n; cur != nil && cur != root; cur = cur.Parent {
		depth++
	}
	return depth
}

func firstToken(v string) string {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
