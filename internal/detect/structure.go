package detect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"golang.org/x/net/html"

	"github.com/IshaanNene/AutoStalk/internal/types"
)

// contentStructure learns relative selectors for the fields of the top
// container by locating each field in a handful of sample containers
// and keeping the selector that occurs most often. Extraction can then
// skip the heuristics on later pages of the same domain.
func (d *Detector) contentStructure(doc *goquery.Document, containerSelector string) map[string]string {
	votes := map[string][]string{}

	doc.Find(containerSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= d.maxSamples {
			return false
		}
		if n := titleElement(s); n != nil {
			votes[types.FieldTitle] = append(votes[types.FieldTitle], relativeSelector(n))
		}
		if a := s.Find("a[href]").First(); a.Length() > 0 {
			votes[types.FieldLink] = append(votes[types.FieldLink], relativeSelector(a.Get(0)))
		}
		if img := s.Find("img").First(); img.Length() > 0 {
			votes[types.FieldImage] = append(votes[types.FieldImage], relativeSelector(img.Get(0)))
		}
		if n := priceElement(s); n != nil {
			votes[types.FieldPrice] = append(votes[types.FieldPrice], relativeSelector(n))
		}
		return true
	})

	if len(votes) == 0 {
		return nil
	}
	structure := make(map[string]string, len(votes))
	for field, sels := range votes {
		structure[field] = mostCommon(sels)
	}
	return structure
}

// titleElement finds the element holding a container's title: the first
// heading, else the first descendant with a title-like class or id.
func titleElement(s *goquery.Selection) *html.Node {
	if h := s.Find("h1, h2, h3, h4, h5, h6").First(); h.Length() > 0 {
		return h.Get(0)
	}
	var node *html.Node
	s.Find("*").EachWithBreak(func(_ int, e *goquery.Selection) bool {
		hay := attrHaystack(e)
		for _, hint := range []string{"title", "name", "heading"} {
			if strings.Contains(hay, hint) {
				node = e.Get(0)
				return false
			}
		}
		return true
	})
	return node
}

// priceElement finds the leaf element holding a container's price,
// keyed by class or recognized by a currency marker in its text.
func priceElement(s *goquery.Selection) *html.Node {
	var node *html.Node
	s.Find("*").EachWithBreak(func(_ int, e *goquery.Selection) bool {
		if e.Children().Length() > 0 {
			return true
		}
		hay := attrHaystack(e)
		if strings.Contains(hay, "price") || strings.Contains(hay, "cost") || currencyPattern.MatchString(e.Text()) {
			node = e.Get(0)
			return false
		}
		return true
	})
	return node
}

// relativeSelector names a field element relative to its container: the
// tag plus its first class when present.
func relativeSelector(n *html.Node) string {
	if cs := classList(n); len(cs) > 0 {
		return n.Data + "." + cssEscape(cs[0])
	}
	return n.Data
}

// mostCommon returns the value occurring most often; the first seen
// wins ties.
func mostCommon(values []string) string {
	counts := make(map[string]int, len(values))
	best, bestN := "", 0
	for _, v := range values {
		counts[v]++
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}
