package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/AutoStalk/internal/types"
)

// StructuredDataType identifies a structured data vocabulary.
type StructuredDataType string

const (
	JSONLD      StructuredDataType = "json-ld"
	Microdata   StructuredDataType = "microdata"
	OpenGraph   StructuredDataType = "opengraph"
	TwitterCard StructuredDataType = "twitter_card"
	MetaTags    StructuredDataType = "meta"
)

// StructuredData is one block of machine-readable page data.
type StructuredData struct {
	Type StructuredDataType `json:"type"`
	Data map[string]any     `json:"data"`
	Raw  string             `json:"raw,omitempty"`
}

// ExtractStructured parses the page-level structured data blocks:
// JSON-LD scripts, OpenGraph and Twitter-card metas, microdata scopes
// and the standard meta tags. These describe the page rather than the
// repeated items, so they are reported separately from ExtractAuto.
func (e *Extractor) ExtractStructured(htmlText, pageURL string) ([]StructuredData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}

	var results []StructuredData
	results = append(results, extractJSONLD(doc)...)

	if og := extractOpenGraph(doc); len(og.Data) > 0 {
		results = append(results, og)
	}
	if tc := extractTwitterCard(doc); len(tc.Data) > 0 {
		results = append(results, tc)
	}
	results = append(results, extractMicrodata(doc)...)
	if meta := extractMetaTags(doc); len(meta.Data) > 0 {
		results = append(results, meta)
	}

	e.logger.Debug("structured data", "url", pageURL, "blocks", len(results))
	return results, nil
}

// extractJSONLD parses <script type="application/ld+json"> bodies. A
// top-level array yields one block per element.
func extractJSONLD(doc *goquery.Document) []StructuredData {
	var results []StructuredData

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			results = append(results, StructuredData{Type: JSONLD, Data: data, Raw: raw})
			return
		}

		var dataArr []map[string]any
		if err := json.Unmarshal([]byte(raw), &dataArr); err == nil {
			for _, d := range dataArr {
				results = append(results, StructuredData{Type: JSONLD, Data: d, Raw: raw})
			}
		}
	})

	return results
}

func extractOpenGraph(doc *goquery.Document) StructuredData {
	data := make(map[string]any)

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		if property != "" && content != "" {
			data[strings.TrimPrefix(property, "og:")] = content
		}
	})

	return StructuredData{Type: OpenGraph, Data: data}
}

func extractTwitterCard(doc *goquery.Document) StructuredData {
	data := make(map[string]any)

	doc.Find(`meta[name^="twitter:"], meta[property^="twitter:"]`).Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		if name == "" {
			name, _ = sel.Attr("property")
		}
		content, _ := sel.Attr("content")
		if name != "" && content != "" {
			data[strings.TrimPrefix(name, "twitter:")] = content
		}
	})

	return StructuredData{Type: TwitterCard, Data: data}
}

// extractMicrodata collects top-level itemscope elements. Property
// values prefer href, then src, content and datetime, then text.
func extractMicrodata(doc *goquery.Document) []StructuredData {
	var results []StructuredData

	doc.Find("[itemscope]:not([itemscope] [itemscope])").Each(func(_ int, sel *goquery.Selection) {
		data := make(map[string]any)

		if itemType, _ := sel.Attr("itemtype"); itemType != "" {
			data["@type"] = itemType
		}

		sel.Find("[itemprop]").Each(func(_ int, prop *goquery.Selection) {
			name, _ := prop.Attr("itemprop")
			if name == "" {
				return
			}

			var value string
			if href, ok := prop.Attr("href"); ok {
				value = href
			} else if src, ok := prop.Attr("src"); ok {
				value = src
			} else if content, ok := prop.Attr("content"); ok {
				value = content
			} else if datetime, ok := prop.Attr("datetime"); ok {
				value = datetime
			} else {
				value = strings.TrimSpace(prop.Text())
			}

			if value != "" {
				data[name] = value
			}
		})

		if len(data) > 0 {
			results = append(results, StructuredData{Type: Microdata, Data: data})
		}
	})

	return results
}

// extractMetaTags picks up the page title, the common named meta tags
// and canonical/icon/alternate links.
func extractMetaTags(doc *goquery.Document) StructuredData {
	data := make(map[string]any)

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		data["title"] = title
	}

	metaNames := []string{
		"description", "keywords", "author", "robots",
		"viewport", "generator", "theme-color", "application-name",
	}
	for _, name := range metaNames {
		content, ok := doc.Find(`meta[name="` + name + `"]`).Attr("content")
		if ok && content != "" {
			data[name] = content
		}
	}

	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok && canonical != "" {
		data["canonical"] = canonical
	}
	if favicon, ok := doc.Find(`link[rel="icon"], link[rel="shortcut icon"]`).Attr("href"); ok && favicon != "" {
		data["favicon"] = favicon
	}

	var hreflangs []map[string]string
	doc.Find(`link[rel="alternate"][hreflang]`).Each(func(_ int, sel *goquery.Selection) {
		lang, _ := sel.Attr("hreflang")
		href, _ := sel.Attr("href")
		if lang != "" && href != "" {
			hreflangs = append(hreflangs, map[string]string{"lang": lang, "href": href})
		}
	})
	if len(hreflangs) > 0 {
		data["hreflang"] = hreflangs
	}

	return StructuredData{Type: MetaTags, Data: data}
}
