package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/internal/types"
)

// compiledRule is one custom field rule with its xpath expression or
// regex pattern compiled up front. CSS selectors stay as strings;
// goquery compiles them per call.
type compiledRule struct {
	name      string
	kind      string
	selector  string
	attribute string
	xpathExpr *xpath.Expr
	regex     *regexp.Regexp
}

// compileRules compiles the configured custom field rules. Rule shape
// is checked by config validation; compilation failures surface here.
func compileRules(rules []config.FieldRule) ([]compiledRule, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{
			name:      r.Name,
			kind:      r.Type,
			selector:  r.Selector,
			attribute: r.Attribute,
		}
		switch r.Type {
		case "css":
		case "xpath":
			expr, err := xpath.Compile(r.Selector)
			if err != nil {
				return nil, fmt.Errorf("custom field %q: invalid xpath %q: %w", r.Name, r.Selector, err)
			}
			cr.xpathExpr = expr
		case "regex":
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("custom field %q: invalid pattern %q: %w", r.Name, r.Pattern, err)
			}
			cr.regex = re
		default:
			return nil, fmt.Errorf("custom field %q: unknown rule type %q", r.Name, r.Type)
		}
		compiled = append(compiled, cr)
	}
	return compiled, nil
}

// applyRules evaluates the custom field rules against one container.
// Rules only fill keys no earlier stage claimed.
func (e *Extractor) applyRules(item *types.Item, container *goquery.Selection) {
	for _, rule := range e.rules {
		if item.Has(rule.name) {
			continue
		}

		var val string
		switch rule.kind {
		case "css":
			val = cssValue(container.Find(rule.selector).First(), rule.attribute)
		case "xpath":
			val = xpathValue(container.Get(0), rule.xpathExpr, rule.attribute)
		case "regex":
			val = regexValue(container, rule.regex)
		}

		if val != "" {
			item.Set(rule.name, val)
		}
	}
}

// cssValue reads a value off a selection according to the rule's
// attribute form.
func cssValue(sel *goquery.Selection, attribute string) string {
	if sel.Length() == 0 {
		return ""
	}
	switch attribute {
	case "", "text":
		return strings.TrimSpace(sel.Text())
	case "html", "innerHTML":
		v, _ := sel.Html()
		return v
	case "outerHTML":
		v, _ := goquery.OuterHtml(sel)
		return v
	default:
		return sel.AttrOr(attribute, "")
	}
}

// xpathValue evaluates a compiled xpath expression relative to the
// container node and reads the first match.
func xpathValue(root *html.Node, expr *xpath.Expr, attribute string) string {
	nodes := htmlquery.QuerySelectorAll(root, expr)
	if len(nodes) == 0 {
		return ""
	}
	node := nodes[0]
	switch attribute {
	case "", "text":
		return strings.TrimSpace(htmlquery.InnerText(node))
	case "html", "innerHTML":
		return htmlquery.OutputHTML(node, false)
	case "outerHTML":
		return htmlquery.OutputHTML(node, true)
	default:
		return htmlquery.SelectAttr(node, attribute)
	}
}

// regexValue runs the pattern over the container's outer HTML. A
// capturing pattern yields its first group, otherwise the whole match.
func regexValue(container *goquery.Selection, re *regexp.Regexp) string {
	htmlText, err := goquery.OuterHtml(container)
	if err != nil {
		return ""
	}
	if re.NumSubexp() > 0 {
		m := re.FindStringSubmatch(htmlText)
		if len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
		return ""
	}
	return strings.TrimSpace(re.FindString(htmlText))
}
