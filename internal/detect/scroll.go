package detect

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/AutoStalk/internal/types"
)

// scrollKeywords hint at scripts or elements that load content as the
// user scrolls.
var scrollKeywords = []string{
	"infinite", "scroll", "lazy", "load-more", "auto-load", "endless", "continuous",
}

// apiLoadPattern matches load-style API endpoints referenced anywhere
// in the raw page source.
var apiLoadPattern = regexp.MustCompile(`(?i)(/api/.*?load|/ajax/.*?load)`)

// detectInfiniteScroll reports indicators of scroll-triggered loading.
// Detection only; nothing in the crawler drives the scroll, but the
// hint tells callers the HTML fetch may be missing content.
func (d *Detector) detectInfiniteScroll(doc *goquery.Document, rawHTML string) *types.ScrollHint {
	var indicators []string

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		body := strings.ToLower(s.Text())
		for _, kw := range scrollKeywords {
			if strings.Contains(body, kw) {
				indicators = append(indicators, "script")
				break
			}
		}
	})

	doc.Find("*").Each(func(_ int, e *goquery.Selection) {
		hay := attrHaystack(e)
		for _, kw := range scrollKeywords {
			if strings.Contains(hay, kw) {
				indicators = append(indicators, "element:"+goquery.NodeName(e))
				break
			}
		}
	})

	indicators = append(indicators, apiLoadPattern.FindAllString(rawHTML, 3)...)

	if len(indicators) == 0 {
		return nil
	}
	return &types.ScrollHint{Indicators: indicators}
}
