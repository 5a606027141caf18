package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/IshaanNene/AutoStalk/internal/types"
)

// TrimMiddleware collapses whitespace runs in every string field.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, key := range item.Keys() {
		if s := item.GetString(key); s != "" {
			item.Set(key, strings.Join(strings.Fields(s), " "))
		}
	}
	return item, nil
}

// PriceNormalizeMiddleware derives a numeric price_normalized field
// from the raw price text, handling both US (1,234.56) and European
// (1.234,56) digit grouping. The raw price field is left untouched and
// unparsable prices simply produce no normalized field.
type PriceNormalizeMiddleware struct{}

var nonPriceChars = regexp.MustCompile(`[^\d.,]`)

func (m *PriceNormalizeMiddleware) Name() string { return "price_normalize" }

func (m *PriceNormalizeMiddleware) Process(item *types.Item) (*types.Item, error) {
	raw := item.GetString(types.FieldPrice)
	if raw == "" {
		return item, nil
	}
	if v, ok := normalizePrice(raw); ok {
		item.Set(types.FieldPriceNormalized, v)
	}
	return item, nil
}

// normalizePrice strips everything but digits and separators, then
// decides which separator is decimal: with both present the rightmost
// wins; a lone comma is decimal only when followed by exactly two
// digits; a lone dot followed by exactly three digits is a thousands
// separator (đồng prices are dot-grouped).
func normalizePrice(raw string) (float64, bool) {
	cleaned := nonPriceChars.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0, false
	}

	hasDot := strings.Contains(cleaned, ".")
	hasComma := strings.Contains(cleaned, ",")
	switch {
	case hasDot && hasComma:
		if strings.LastIndex(cleaned, ".") > strings.LastIndex(cleaned, ",") {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case hasComma:
		if strings.Count(cleaned, ",") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else if i := strings.Index(cleaned, ","); len(cleaned)-i-1 == 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasDot:
		if strings.Count(cleaned, ".") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		} else if i := strings.Index(cleaned, "."); len(cleaned)-i-1 == 3 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// URLFilterMiddleware deletes link and image fields whose value is not
// an absolute URL, a protocol-relative URL or an absolute path. The
// item itself survives; only the junk field goes.
type URLFilterMiddleware struct{}

var urlPrefixes = []string{"http://", "https://", "//", "/"}

func (m *URLFilterMiddleware) Name() string { return "url_filter" }

func (m *URLFilterMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, key := range []string{types.FieldLink, types.FieldImage} {
		s := item.GetString(key)
		if s == "" {
			continue
		}
		if !hasURLPrefix(s) {
			item.Delete(key)
		}
	}
	return item, nil
}

func hasURLPrefix(s string) bool {
	for _, p := range urlPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// PageDedupMiddleware drops items repeating a (title, link) pair seen
// earlier in the same pipeline. Build a fresh instance per page.
type PageDedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewPageDedupMiddleware() *PageDedupMiddleware {
	return &PageDedupMiddleware{seen: make(map[string]struct{})}
}

func (m *PageDedupMiddleware) Name() string { return "page_dedup" }

func (m *PageDedupMiddleware) Process(item *types.Item) (*types.Item, error) {
	key := item.GetString(types.FieldTitle) + "\x00" + item.GetString(types.FieldLink)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return nil, nil
	}
	m.seen[key] = struct{}{}
	return item, nil
}

// ValidityMiddleware is the final gate: an item must carry a title and
// at least one of link, image or price to be worth keeping.
type ValidityMiddleware struct{}

func (m *ValidityMiddleware) Name() string { return "validity" }

func (m *ValidityMiddleware) Process(item *types.Item) (*types.Item, error) {
	if item.GetString(types.FieldTitle) == "" {
		return nil, nil
	}
	if item.GetString(types.FieldLink) == "" &&
		item.GetString(types.FieldImage) == "" &&
		item.GetString(types.FieldPrice) == "" {
		return nil, nil
	}
	return item, nil
}
