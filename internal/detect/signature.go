package detect

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// inlineTags never form item containers on their own.
var inlineTags = map[string]bool{
	"a": true, "span": true, "b": true, "strong": true, "em": true,
	"i": true, "small": true, "label": true, "mark": true, "code": true,
	"time": true, "button": true, "input": true, "select": true,
	"option": true, "textarea": true, "svg": true, "path": true,
	"br": true, "hr": true, "img": true,
}

// unstableClass matches machine-generated class names (long digit runs,
// hash fragments) that change between site builds. They are excluded
// from selectors but still contribute to signatures.
var unstableClass = regexp.MustCompile(`\d{4,}|[a-f0-9]{8}`)

// cluster groups the elements sharing one structural signature. Only
// the first element in document order is retained as representative.
type cluster struct {
	first *html.Node
	count int
}

// signer computes structural signatures. The byte buffer, class slice
// and child-count map are reused across calls so a whole-document walk
// stays allocation-light.
type signer struct {
	buf     []byte
	classes []string
	tags    []string
	counts  map[string]int
}

func newSigner() *signer {
	return &signer{
		buf:    make([]byte, 0, 128),
		counts: make(map[string]int, 8),
	}
}

// signature renders an element as tag.sortedClasses|childTag:count-...
// Elements without classes use "_" and elements without child elements
// end in "|leaf", so structural twins land in the same cluster even
// when their text differs.
func (s *signer) signature(n *html.Node) string {
	s.buf = append(s.buf[:0], n.Data...)
	s.buf = append(s.buf, '.')

	s.classes = appendClasses(s.classes[:0], n)
	if len(s.classes) == 0 {
		s.buf = append(s.buf, '_')
	} else {
		sort.Strings(s.classes)
		for i, c := range s.classes {
			if i > 0 {
				s.buf = append(s.buf, '.')
			}
			s.buf = append(s.buf, c...)
		}
	}

	s.tags = s.tags[:0]
	clear(s.counts)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if s.counts[c.Data] == 0 {
			s.tags = append(s.tags, c.Data)
		}
		s.counts[c.Data]++
	}

	if len(s.tags) == 0 {
		s.buf = append(s.buf, "|leaf"...)
	} else {
		sort.Strings(s.tags)
		s.buf = append(s.buf, '|')
		for i, tag := range s.tags {
			if i > 0 {
				s.buf = append(s.buf, '-')
			}
			s.buf = append(s.buf, tag...)
			s.buf = append(s.buf, ':')
			s.buf = strconv.AppendInt(s.buf, int64(s.counts[tag]), 10)
		}
	}

	return string(s.buf)
}

// clusterBySignature walks the parse tree once and buckets every
// element by its structural signature.
func clusterBySignature(root *html.Node) map[string]*cluster {
	sig := newSigner()
	clusters := make(map[string]*cluster, 64)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			key := sig.signature(n)
			if cl, ok := clusters[key]; ok {
				cl.count++
			} else {
				clusters[key] = &cluster{first: n, count: 1}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return clusters
}

// selectorFor builds a CSS selector for an element: the tag plus up to
// two stable classes, falling back to a parent-qualified tag, then the
// bare tag.
func selectorFor(n *html.Node) string {
	tag := n.Data

	var stable []string
	for _, c := range classList(n) {
		if unstableClass.MatchString(c) {
			continue
		}
		stable = append(stable, c)
		if len(stable) == 2 {
			break
		}
	}
	if len(stable) > 0 {
		var b strings.Builder
		b.WriteString(tag)
		for _, c := range stable {
			b.WriteByte('.')
			b.WriteString(cssEscape(c))
		}
		return b.String()
	}

	if p := n.Parent; p != nil && p.Type == html.ElementNode {
		if pc := classList(p); len(pc) > 0 {
			return p.Data + "." + cssEscape(pc[0]) + " > " + tag
		}
	}

	return tag
}

// appendClasses appends the element's class names to dst.
func appendClasses(dst []string, n *html.Node) []string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return append(dst, strings.Fields(a.Val)...)
		}
	}
	return dst
}

// classList returns the element's class names in document order.
func classList(n *html.Node) []string {
	return appendClasses(nil, n)
}

// cssSelectorEscaper escapes characters that would change the meaning
// of a class name inside a CSS selector.
var cssSelectorEscaper = strings.NewReplacer(
	":", `\:`,
	".", `\.`,
	"[", `\[`,
	"]", `\]`,
	"(", `\(`,
	")", `\)`,
	"/", `\/`,
	" ", `\ `,
)

func cssEscape(s string) string {
	return cssSelectorEscaper.Replace(s)
}
