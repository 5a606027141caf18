package detect

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/AutoStalk/internal/urlutil"
)

// Attribute keywords hinting at each canonical field.
var (
	titleHints = []string{"title", "name", "heading", "product-name", "item-name"}
	priceHints = []string{"price", "cost", "amount", "gia", "valor", "precio"}
	descHints  = []string{"desc", "description", "summary", "excerpt", "content", "text", "detail"}
)

// currencyPattern matches prices written with a leading currency symbol
// or a trailing currency word across the markets the crawler targets.
var currencyPattern = regexp.MustCompile(`(?i)(\$|€|£|₫|¥|₹|元|원|฿|₱|Rp|RM|৳)\s?[\d.,]+\s?[KMB]?|[\d.,]+\s?(usd|eur|gbp|vnd|đ|₫|yuan|won|baht|peso|rupiah|ringgit|taka|dollar|euro|pound)`)

var (
	onclickURL = regexp.MustCompile(`["']([^"']+)["']`)
	styleURL   = regexp.MustCompile(`url\(['"]?([^'")]+)['"]?\)`)
)

// imageAttrs are tried in order on the first <img>; lazy loaders park
// the real URL in data attributes and leave src as a placeholder.
var imageAttrs = []string{"src", "data-src", "data-lazy", "data-original", "data-srcset"}

// findTitle picks the first plausible title inside a container: a
// heading with real text, then keyword-classed descendants, then the
// container's own title attribute, then the first image alt.
func findTitle(s *goquery.Selection) string {
	title := ""
	s.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if text := strings.TrimSpace(h.Text()); utf8.RuneCountInString(text) > 3 {
			title = text
			return false
		}
		return true
	})
	if title != "" {
		return title
	}

	s.Find("*").EachWithBreak(func(_ int, e *goquery.Selection) bool {
		hay := attrHaystack(e)
		for _, hint := range titleHints {
			if strings.Contains(hay, hint) {
				if text := strings.TrimSpace(e.Text()); utf8.RuneCountInString(text) > 3 {
					title = text
					return false
				}
			}
		}
		return true
	})
	if title != "" {
		return title
	}

	if v, ok := s.Attr("title"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if v, ok := s.Find("img").First().Attr("alt"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// findLink returns the first outgoing URL of a container, resolved
// against the page URL. Anchors win over data attributes, which win
// over inline onclick handlers.
func findLink(s *goquery.Selection, pageURL string) string {
	if a := s.Find("a[href]").First(); a.Length() > 0 {
		href, _ := a.Attr("href")
		return urlutil.ResolveOr(pageURL, href)
	}
	for _, attr := range []string{"data-url", "data-href", "data-link"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			return urlutil.ResolveOr(pageURL, v)
		}
	}
	if onclick, ok := s.Attr("onclick"); ok {
		if strings.Contains(onclick, "location.href") || strings.Contains(onclick, "window.open") {
			if m := onclickURL.FindStringSubmatch(onclick); m != nil {
				return urlutil.ResolveOr(pageURL, m[1])
			}
		}
	}
	return ""
}

// findImage returns the first image URL of a container, checking lazy
// loading attributes, inline style backgrounds and <source> srcsets.
func findImage(s *goquery.Selection, pageURL string) string {
	if img := s.Find("img").First(); img.Length() > 0 {
		for _, attr := range imageAttrs {
			if v, ok := img.Attr(attr); ok && v != "" {
				return urlutil.ResolveOr(pageURL, firstToken(v))
			}
		}
	}

	src := ""
	s.Find("*").EachWithBreak(func(_ int, e *goquery.Selection) bool {
		if style, ok := e.Attr("style"); ok {
			if m := styleURL.FindStringSubmatch(style); m != nil {
				src = m[1]
				return false
			}
		}
		return true
	})
	if src != "" {
		return urlutil.ResolveOr(pageURL, src)
	}

	if v, ok := s.Find("source").First().Attr("srcset"); ok && v != "" {
		return urlutil.ResolveOr(pageURL, firstToken(v))
	}
	return ""
}

// findPrice returns the first price-looking text of a container:
// keyword-classed elements whose text carries a currency marker, then a
// data-price attribute, then a currency match anywhere in the text.
func findPrice(s *goquery.Selection) string {
	price := ""
	s.Find("*").EachWithBreak(func(_ int, e *goquery.Selection) bool {
		hay := attrHaystack(e)
		for _, hint := range priceHints {
			if strings.Contains(hay, hint) {
				if text := strings.TrimSpace(e.Text()); currencyPattern.MatchString(text) {
					price = text
					return false
				}
			}
		}
		return true
	})
	if price != "" {
		return price
	}

	if v, ok := s.Attr("data-price"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if m := currencyPattern.FindString(s.Text()); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}

// findDescription returns a medium-length blurb: keyword-classed
// descendants first, then any paragraph, then a nested meta description.
// Texts under 20 or over 500 runes are rejected as labels or walls.
func findDescription(s *goquery.Selection) string {
	desc := ""
	s.Find("*").EachWithBreak(func(_ int, e *goquery.Selection) bool {
		hay := attrHaystack(e)
		for _, hint := range descHints {
			if strings.Contains(hay, hint) {
				if text := strings.TrimSpace(e.Text()); blurbLength(text) {
					desc = text
					return false
				}
			}
		}
		return true
	})
	if desc != "" {
		return desc
	}

	s.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if text := strings.TrimSpace(p.Text()); blurbLength(text) {
			desc = text
			return false
		}
		return true
	})
	if desc != "" {
		return desc
	}

	if v, ok := s.Find(`meta[name="description"]`).First().Attr("content"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func blurbLength(s string) bool {
	n := utf8.RuneCountInString(s)
	return n > 20 && n < 500
}

// attrHaystack joins an element's class and id for keyword matching.
func attrHaystack(s *goquery.Selection) string {
	class, _ := s.Attr("class")
	id, _ := s.Attr("id")
	return strings.ToLower(class + " " + id)
}

// firstToken returns the first whitespace-separated token, for srcset
// style values carrying width descriptors.
func firstToken(v string) string {
	if f := strings.Fields(v); len(f) > 0 {
		return f[0]
	}
	return ""
}
