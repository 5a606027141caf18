package detect

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func container(t *testing.T, page, selector string) *goquery.Selection {
	t.Helper()
	sel := parseDoc(t, page).Find(selector).First()
	if sel.Length() == 0 {
		t.Fatalf("fixture has no %q", selector)
	}
	return sel
}

// --- Title Tests ---

func TestFindTitleSkipsShortHeadings(t *testing.T) {
	page := `<div class="card"><h4>New</h4><h3>Actual Product Name</h3></div>`
	got := findTitle(container(t, page, "div.card"))
	if got != "Actual Product Name" {
		t.Errorf("expected the longer heading, got %q", got)
	}
}

func TestFindTitleKeywordClass(t *testing.T) {
	page := `<div class="card"><span class="product-name">Cordless Drill</span></div>`
	got := findTitle(container(t, page, "div.card"))
	if got != "Cordless Drill" {
		t.Errorf("expected keyword-classed title, got %q", got)
	}
}

func TestFindTitleAttributeFallback(t *testing.T) {
	page := `<div class="card" title="Tooltip Title"><span>no</span></div>`
	got := findTitle(container(t, page, "div.card"))
	if got != "Tooltip Title" {
		t.Errorf("expected title attribute, got %q", got)
	}
}

func TestFindTitleImageAltFallback(t *testing.T) {
	page := `<div class="card"><img src="/x.jpg" alt="Alt Text Name"></div>`
	got := findTitle(container(t, page, "div.card"))
	if got != "Alt Text Name" {
		t.Errorf("expected image alt, got %q", got)
	}
}

// --- Link Tests ---

func TestFindLinkAnchor(t *testing.T) {
	page := `<div class="card"><a href="/p/9">view</a></div>`
	got := findLink(container(t, page, "div.card"), "https://example.com/list")
	if got != "https://example.com/p/9" {
		t.Errorf("expected resolved anchor href, got %q", got)
	}
}

func TestFindLinkDataAttribute(t *testing.T) {
	page := `<div class="card" data-href="/p/10"><span>x</span></div>`
	got := findLink(container(t, page, "div.card"), "https://example.com/list")
	if got != "https://example.com/p/10" {
		t.Errorf("expected resolved data-href, got %q", got)
	}
}

func TestFindLinkOnclick(t *testing.T) {
	page := `<div class="card" onclick="window.location.href='/p/11'"><span>x</span></div>`
	got := findLink(container(t, page, "div.card"), "https://example.com/list")
	if got != "https://example.com/p/11" {
		t.Errorf("expected url from onclick, got %q", got)
	}
}

// --- Image Tests ---

func TestFindImageLazyAttributes(t *testing.T) {
	page := `<div class="card"><img data-src="/lazy.jpg"></div>`
	got := findImage(container(t, page, "div.card"), "https://example.com")
	if got != "https://example.com/lazy.jpg" {
		t.Errorf("expected data-src image, got %q", got)
	}
}

func TestFindImageSrcsetFirstToken(t *testing.T) {
	page := `<div class="card"><img data-srcset="/img-400.jpg 400w, /img-800.jpg 800w"></div>`
	got := findImage(container(t, page, "div.card"), "https://example.com")
	if got != "https://example.com/img-400.jpg" {
		t.Errorf("expected first srcset token, got %q", got)
	}
}

func TestFindImageStyleBackground(t *testing.T) {
	page := `<div class="card"><div class="thumb" style="background-image: url('/bg.png'); color: red"></div></div>`
	got := findImage(container(t, page, "div.card"), "https://example.com")
	if got != "https://example.com/bg.png" {
		t.Errorf("expected style background url, got %q", got)
	}
}

func TestFindImageSourceElement(t *testing.T) {
	page := `<div class="card"><picture><source srcset="/pic-400.webp 400w"></picture></div>`
	got := findImage(container(t, page, "div.card"), "https://example.com")
	if got != "https://example.com/pic-400.webp" {
		t.Errorf("expected source srcset, got %q", got)
	}
}

// --- Price Tests ---

func TestFindPriceKeywordElement(t *testing.T) {
	page := `<div class="card"><span class="sale-price">$1,299.00</span></div>`
	got := findPrice(container(t, page, "div.card"))
	if got != "$1,299.00" {
		t.Errorf("expected keyword-classed price, got %q", got)
	}
}

func TestFindPriceDataAttribute(t *testing.T) {
	page := `<div class="card" data-price="42.00"><span class="cost-label">Sale</span></div>`
	got := findPrice(container(t, page, "div.card"))
	if got != "42.00" {
		t.Errorf("expected data-price, got %q", got)
	}
}

func TestFindPriceTextFallback(t *testing.T) {
	page := `<div class="card"><span>now only €89,99 today</span></div>`
	got := findPrice(container(t, page, "div.card"))
	if got != "€89,99" {
		t.Errorf("expected currency match from text, got %q", got)
	}
}

// --- Description Tests ---

func TestFindDescriptionLengthBounds(t *testing.T) {
	page := `<div class="card">
	<p>short</p>
	<p>This paragraph is comfortably long enough to be treated as a description of the item.</p>
	</div>`
	got := findDescription(container(t, page, "div.card"))
	if got != "This paragraph is comfortably long enough to be treated as a description of the item." {
		t.Errorf("expected the longer paragraph, got %q", got)
	}
}

func TestFindDescriptionKeywordBeatsParagraph(t *testing.T) {
	page := `<div class="card">
	<div class="summary">A keyword-classed summary that is long enough to qualify as one.</div>
	<p>A paragraph that is also long enough to qualify as a description.</p>
	</div>`
	got := findDescription(container(t, page, "div.card"))
	if got != "A keyword-classed summary that is long enough to qualify as one." {
		t.Errorf("expected the keyword-classed summary, got %q", got)
	}
}

// --- Currency Pattern Tests ---

func TestCurrencyPattern(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"$19.99", true},
		{"€ 1.234,56", true},
		{"₫500.000", true},
		{"1,299 VND", true},
		{"99 usd", true},
		{"2.5M ₫", false},
		{"free shipping", false},
		{"19.99", false},
		{"Contact us", false},
	}
	for _, tc := range cases {
		if got := currencyPattern.MatchString(tc.text); got != tc.want {
			t.Errorf("currency(%q): expected %v, got %v", tc.text, tc.want, got)
		}
	}
}
