package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/internal/observability"
	"github.com/IshaanNene/AutoStalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// stubPage is one canned fetch-and-extract result.
type stubPage struct {
	titles []string
	next   string
	err    error
}

// stubEngine serves stubPages keyed by URL and records fetch order.
type stubEngine struct {
	mu      sync.Mutex
	pages   map[string]stubPage
	fetched []string
}

func (e *stubEngine) FetchAndExtract(_ context.Context, url string, _ types.Mode) ([]*types.Item, string, types.Mode, error) {
	e.mu.Lock()
	e.fetched = append(e.fetched, url)
	e.mu.Unlock()

	page, ok := e.pages[url]
	if !ok {
		return nil, "", types.ModeHTML, fmt.Errorf("no fixture for %s", url)
	}
	if page.err != nil {
		return nil, "", types.ModeHTML, page.err
	}

	items := make([]*types.Item, 0, len(page.titles))
	for _, title := range page.titles {
		item := types.NewItem(url)
		item.Set(types.FieldTitle, title)
		item.Set(types.FieldLink, url)
		items = append(items, item)
	}
	return items, page.next, types.ModeHTML, nil
}

func (e *stubEngine) StatsSnapshot() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]any{"requests": int64(len(e.fetched))}
}

func (e *stubEngine) fetchCount(url string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, u := range e.fetched {
		if u == url {
			n++
		}
	}
	return n
}

func (e *stubEngine) fetchedURLs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.fetched...)
}

// chain builds n pages on base where page i yields one item and links
// to page i+1.
func chain(base string, n int) map[string]stubPage {
	pages := make(map[string]stubPage, n)
	for i := 1; i <= n; i++ {
		next := ""
		if i < n {
			next = fmt.Sprintf("%s/page/%d", base, i+1)
		}
		pages[fmt.Sprintf("%s/page/%d", base, i)] = stubPage{
			titles: []string{fmt.Sprintf("Item %d", i)},
			next:   next,
		}
	}
	return pages
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Crawler.FollowRobots = false
	cfg.Crawler.DomainDelay = 0
	cfg.CheckpointInterval = 0
	return cfg
}

func newTestHandler(t *testing.T, eng Engine, cfg *config.Config) *Handler {
	t.Helper()
	h, err := New(eng, cfg, testLogger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

// --- Crawl Tests ---

func TestCrawlFollowsPagination(t *testing.T) {
	eng := &stubEngine{pages: chain("https://shop.example.com", 3)}
	h := newTestHandler(t, eng, testConfig())

	var titles []string
	h.SetResultSink(func(item *types.Item) {
		titles = append(titles, item.GetString(types.FieldTitle))
	})

	sum, err := h.Crawl(context.Background(), []string{"https://shop.example.com/page/1"}, types.ModeAuto)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	if sum.PagesCrawled != 3 {
		t.Errorf("expected 3 pages crawled, got %d", sum.PagesCrawled)
	}
	if sum.ItemsExtracted != 3 {
		t.Errorf("expected 3 items, got %d", sum.ItemsExtracted)
	}
	if sum.Errors != 0 {
		t.Errorf("expected 0 errors, got %d", sum.Errors)
	}
	if sum.SuccessRate != 1.0 {
		t.Errorf("expected success rate 1.0, got %v", sum.SuccessRate)
	}
	if sum.DomainsCrawled != 1 {
		t.Errorf("expected 1 domain, got %d", sum.DomainsCrawled)
	}

	want := []string{"Item 1", "Item 2", "Item 3"}
	if len(titles) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(titles))
	}
	for i, w := range want {
		if titles[i] != w {
			t.Errorf("item %d: expected %q, got %q", i, w, titles[i])
		}
	}

	if h.State() != StateStopped {
		t.Errorf("expected stopped after depletion, got %s", h.State())
	}
}

func TestCrawlPageCap(t *testing.T) {
	eng := &stubEngine{pages: chain("https://shop.example.com", 5)}
	cfg := testConfig()
	cfg.MaxPages = 2
	h := newTestHandler(t, eng, cfg)

	sum, err := h.Crawl(context.Background(), []string{"https://shop.example.com/page/1"}, types.ModeAuto)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if sum.PagesCrawled != 2 {
		t.Errorf("expected 2 pages crawled, got %d", sum.PagesCrawled)
	}
	if got := len(eng.fetchedURLs()); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestCrawlDepthCap(t *testing.T) {
	eng := &stubEngine{pages: chain("https://shop.example.com", 4)}
	cfg := testConfig()
	cfg.MaxDepth = 1
	h := newTestHandler(t, eng, cfg)

	sum, err := h.Crawl(context.Background(), []string{"https://shop.example.com/page/1"}, types.ModeAuto)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	// Seed is depth 0, its next page depth 1; page 3 would be depth 2.
	if sum.PagesCrawled != 2 {
		t.Errorf("expected 2 pages crawled, got %d", sum.PagesCrawled)
	}
	if n := eng.fetchCount("https://shop.example.com/page/3"); n != 0 {
		t.Errorf("expected page 3 never fetched, got %d", n)
	}
}

func TestCrawlSkipsExcludedExtensions(t *testing.T) {
	page := "https://shop.example.com/list"
	doc := "https://shop.example.com/report.pdf"
	eng := &stubEngine{pages: map[string]stubPage{
		page: {titles: []string{"Item"}},
	}}
	h := newTestHandler(t, eng, testConfig())

	sum, err := h.Crawl(context.Background(), []string{page, doc}, types.ModeAuto)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if sum.PagesCrawled != 1 {
		t.Errorf("expected 1 page crawled, got %d", sum.PagesCrawled)
	}
	if sum.Errors != 0 {
		t.Errorf("expected 0 errors, got %d", sum.Errors)
	}
	if n := eng.fetchCount(doc); n != 0 {
		t.Errorf("expected pdf never fetched, got %d", n)
	}
}

func TestCrawlCountsErrors(t *testing.T) {
	good1 := "https://shop.example.com/a"
	bad := "https://shop.example.com/b"
	good2 := "https://shop.example.com/c"
	eng := &stubEngine{pages: map[string]stubPage{
		good1: {titles: []string{"A"}},
		bad:   {err: errors.New("boom")},
		good2: {titles: []string{"C"}},
	}}
	h := newTestHandler(t, eng, testConfig())

	sum, err := h.Crawl(context.Background(), []string{good1, bad, good2}, types.ModeAuto)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if sum.PagesCrawled != 2 {
		t.Errorf("expected 2 pages crawled, got %d", sum.PagesCrawled)
	}
	if sum.Errors != 1 {
		t.Errorf("expected 1 error, got %d", sum.Errors)
	}
	if sum.SuccessRate != 0.5 {
		t.Errorf("expected success rate 0.5, got %v", sum.SuccessRate)
	}
}

func TestCrawlRejectsBadSeeds(t *testing.T) {
	h := newTestHandler(t, &stubEngine{}, testConfig())

	tests := []struct {
		name  string
		seeds []string
	}{
		{"empty", nil},
		{"no scheme", []string{"not a url"}},
		{"wrong scheme", []string{"ftp://host/file"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.Crawl(context.Background(), tt.seeds, types.ModeAuto); err == nil {
				t.Errorf("expected error for seeds %v", tt.seeds)
			}
		})
	}
}

func TestCrawlRobotsDeny(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	private := ts.URL + "/private/x"
	public := ts.URL + "/public/x"
	eng := &stubEngine{pages: map[string]stubPage{
		private: {titles: []string{"P"}},
		public:  {titles: []string{"Q"}},
	}}
	cfg := testConfig()
	cfg.Crawler.FollowRobots = true
	h := newTestHandler(t, eng, cfg)

	sum, err := h.Crawl(context.Background(), []string{private, public}, types.ModeAuto)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if sum.PagesCrawled != 1 {
		t.Errorf("expected 1 page crawled, got %d", sum.PagesCrawled)
	}
	if sum.Errors != 0 {
		t.Errorf("robots block is not an error, got %d", sum.Errors)
	}
	if n := eng.fetchCount(private); n != 0 {
		t.Errorf("expected private URL never fetched, got %d", n)
	}
	if n := eng.fetchCount(public); n != 1 {
		t.Errorf("expected public URL fetched once, got %d", n)
	}
}

func TestCrawlRateLimitSpacing(t *testing.T) {
	u1 := "https://shop.example.com/a"
	u2 := "https://shop.example.com/b"
	u3 := "https://shop.example.com/c"
	eng := &stubEngine{pages: map[string]stubPage{
		u1: {titles: []string{"A"}},
		u2: {titles: []string{"B"}},
		u3: {titles: []string{"C"}},
	}}
	cfg := testConfig()
	cfg.Crawler.DomainDelay = 0.05
	h := newTestHandler(t, eng, cfg)

	start := time.Now()
	if _, err := h.Crawl(context.Background(), []string{u1, u2, u3}, types.ModeAuto); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("expected two host waits (>= 100ms), got %v", elapsed)
	}
}

func TestCrawlMultiDomainCap(t *testing.T) {
	pages := chain("https://a.example.com", 3)
	for u, p := range chain("https://b.example.com", 3) {
		pages[u] = p
	}
	for u, p := range chain("https://c.example.com", 3) {
		pages[u] = p
	}
	eng := &stubEngine{pages: pages}
	h := newTestHandler(t, eng, testConfig())

	seeds := []string{
		"https://a.example.com/page/1",
		"https://b.example.com/page/1",
		"https://c.example.com/page/1",
	}
	sum, err := h.CrawlMultiDomain(context.Background(), seeds, types.ModeAuto, 2)
	if err != nil {
		t.Fatalf("CrawlMultiDomain: %v", err)
	}

	if sum.PagesTotal != 6 {
		t.Errorf("expected pages total 6, got %d", sum.PagesTotal)
	}
	if sum.PagesCrawled != 6 {
		t.Errorf("expected 6 pages crawled, got %d", sum.PagesCrawled)
	}
	for _, host := range []string{"a.example.com", "b.example.com", "c.example.com"} {
		if got := sum.DomainCounts[host]; got != 2 {
			t.Errorf("expected 2 pages for %s, got %d", host, got)
		}
	}

	// FIFO order interleaves the hosts.
	want := []string{
		"https://a.example.com/page/1",
		"https://b.example.com/page/1",
		"https://c.example.com/page/1",
		"https://a.example.com/page/2",
		"https://b.example.com/page/2",
		"https://c.example.com/page/2",
	}
	got := eng.fetchedURLs()
	if len(got) != len(want) {
		t.Fatalf("expected %d fetches, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("fetch %d: expected %s, got %s", i, w, got[i])
		}
	}
}

func TestCrawlCheckpointCadence(t *testing.T) {
	eng := &stubEngine{pages: chain("https://shop.example.com", 5)}
	cfg := testConfig()
	cfg.CheckpointInterval = 2
	h := newTestHandler(t, eng, cfg)

	var blobs [][]byte
	h.SetCheckpointSink(func(blob []byte) error {
		blobs = append(blobs, append([]byte(nil), blob...))
		return nil
	})

	if _, err := h.Crawl(context.Background(), []string{"https://shop.example.com/page/1"}, types.ModeAuto); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	// Pages 2 and 4 plus the final checkpoint.
	if len(blobs) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(blobs))
	}
}

func TestCrawlPauseAndContinue(t *testing.T) {
	eng := &stubEngine{pages: chain("https://shop.example.com", 4)}
	h := newTestHandler(t, eng, testConfig())

	h.SetProgressSink(func(snap types.ProgressSnapshot) {
		if snap.PagesCrawled == 1 {
			h.Pause()
		}
	})

	sum1, err := h.Crawl(context.Background(), []string{"https://shop.example.com/page/1"}, types.ModeAuto)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if sum1.PagesCrawled != 1 {
		t.Errorf("expected 1 page before pause, got %d", sum1.PagesCrawled)
	}
	if h.State() != StatePaused {
		t.Fatalf("expected paused, got %s", h.State())
	}

	sum2, err := h.Crawl(context.Background(), nil, types.ModeAuto)
	if err != nil {
		t.Fatalf("continue Crawl: %v", err)
	}
	if sum2.PagesCrawled != 4 {
		t.Errorf("expected 4 pages after continue, got %d", sum2.PagesCrawled)
	}
	if sum2.ItemsExtracted != 4 {
		t.Errorf("expected 4 items after continue, got %d", sum2.ItemsExtracted)
	}
	if h.State() != StateStopped {
		t.Errorf("expected stopped after depletion, got %s", h.State())
	}
}

func TestCrawlBumpsMetrics(t *testing.T) {
	eng := &stubEngine{pages: chain("https://shop.example.com", 3)}
	h := newTestHandler(t, eng, testConfig())
	m := observability.NewMetrics(testLogger)
	h.SetMetrics(m)

	if _, err := h.Crawl(context.Background(), []string{"https://shop.example.com/page/1"}, types.ModeAuto); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	snap := m.Snapshot()
	if snap["pages_crawled"] != 3 {
		t.Errorf("expected pages_crawled 3, got %d", snap["pages_crawled"])
	}
	if snap["items_extracted"] != 3 {
		t.Errorf("expected items_extracted 3, got %d", snap["items_extracted"])
	}
	if snap["domains_seen"] != 1 {
		t.Errorf("expected domains_seen 1, got %d", snap["domains_seen"])
	}
	if snap["queue_depth"] != 0 {
		t.Errorf("expected empty queue at end, got %d", snap["queue_depth"])
	}
}

func TestCrawlStoppedIsTerminal(t *testing.T) {
	eng := &stubEngine{pages: chain("https://shop.example.com", 1)}
	h := newTestHandler(t, eng, testConfig())

	if _, err := h.Crawl(context.Background(), []string{"https://shop.example.com/page/1"}, types.ModeAuto); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if h.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", h.State())
	}
	if _, err := h.Crawl(context.Background(), []string{"https://shop.example.com/page/1"}, types.ModeAuto); err == nil {
		t.Error("expected error crawling a stopped session")
	}
}

// --- Resume Tests ---

func TestCrawlResumeMatchesUninterrupted(t *testing.T) {
	const base = "https://shop.example.com"
	seeds := []string{base + "/page/1"}

	// Uninterrupted reference run.
	engU := &stubEngine{pages: chain(base, 5)}
	hU := newTestHandler(t, engU, testConfig())
	var titlesU []string
	hU.SetResultSink(func(item *types.Item) {
		titlesU = append(titlesU, item.GetString(types.FieldTitle))
	})
	sumU, err := hU.Crawl(context.Background(), seeds, types.ModeAuto)
	if err != nil {
		t.Fatalf("reference Crawl: %v", err)
	}
	if sumU.PagesCrawled != 5 {
		t.Fatalf("expected 5 reference pages, got %d", sumU.PagesCrawled)
	}

	// Interrupted run: stop after 2 pages, keep the final checkpoint.
	engA := &stubEngine{pages: chain(base, 5)}
	cfgA := testConfig()
	cfgA.MaxPages = 2
	hA := newTestHandler(t, engA, cfgA)
	var blob []byte
	hA.SetCheckpointSink(func(b []byte) error {
		blob = append([]byte(nil), b...)
		return nil
	})
	var titles []string
	hA.SetResultSink(func(item *types.Item) {
		titles = append(titles, item.GetString(types.FieldTitle))
	})
	sumA, err := hA.Crawl(context.Background(), seeds, types.ModeAuto)
	if err != nil {
		t.Fatalf("interrupted Crawl: %v", err)
	}
	if sumA.PagesCrawled != 2 {
		t.Fatalf("expected 2 pages before interrupt, got %d", sumA.PagesCrawled)
	}
	if blob == nil {
		t.Fatal("expected a checkpoint blob")
	}

	// Continue in a fresh handler from the checkpoint.
	engB := &stubEngine{pages: chain(base, 5)}
	hB := newTestHandler(t, engB, testConfig())
	hB.SetResultSink(func(item *types.Item) {
		titles = append(titles, item.GetString(types.FieldTitle))
	})
	if err := hB.ResumeFromCheckpoint(blob); err != nil {
		t.Fatalf("ResumeFromCheckpoint: %v", err)
	}
	sumB, err := hB.Crawl(context.Background(), nil, types.ModeAuto)
	if err != nil {
		t.Fatalf("resumed Crawl: %v", err)
	}

	if sumB.PagesCrawled != 5 {
		t.Errorf("expected counters to continue to 5, got %d", sumB.PagesCrawled)
	}
	if sumB.ItemsExtracted != 5 {
		t.Errorf("expected 5 items total, got %d", sumB.ItemsExtracted)
	}
	if sumB.SessionID != sumA.SessionID {
		t.Errorf("expected session id %s preserved, got %s", sumA.SessionID, sumB.SessionID)
	}

	// No page is fetched twice across the interrupted + resumed runs.
	for i := 1; i <= 2; i++ {
		url := fmt.Sprintf("%s/page/%d", base, i)
		if n := engB.fetchCount(url); n != 0 {
			t.Errorf("expected %s not refetched, got %d", url, n)
		}
	}

	if len(titles) != len(titlesU) {
		t.Fatalf("expected %d items, got %d", len(titlesU), len(titles))
	}
	for i, w := range titlesU {
		if titles[i] != w {
			t.Errorf("item %d: expected %q, got %q", i, w, titles[i])
		}
	}
}
