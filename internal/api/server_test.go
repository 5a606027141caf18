package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/AutoStalk/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const listingPage = `<!DOCTYPE html>
<html><body>
<div class="catalog">
  <div class="product-card"><img src="/img/1.jpg"><h3>Widget One</h3><span class="price">$10.00</span><a class="product-link" href="/p/1">View</a></div>
  <div class="product-card"><img src="/img/2.jpg"><h3>Widget Two</h3><span class="price">$12.50</span><a class="product-link" href="/p/2">View</a></div>
  <div class="product-card"><img src="/img/3.jpg"><h3>Widget Three</h3><span class="price">$7.25</span><a class="product-link" href="/p/3">View</a></div>
</div>
%s
</body></html>`

func testServerConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Crawler.EnablePlaywright = false
	cfg.Crawler.FollowRobots = false
	cfg.Crawler.DelayRange = []float64{0, 0}
	cfg.Crawler.DomainDelay = 0
	cfg.Logging.Level = "error"
	cfg.Export.Path = t.TempDir()
	cfg.CheckpointPath = filepath.Join(t.TempDir(), "checkpoint.json")
	return cfg
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := NewServer(testServerConfig(t), testLogger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	api := httptest.NewServer(srv)
	t.Cleanup(func() {
		api.Close()
		srv.client.Close()
	})
	return srv, api
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type jobView struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress *struct {
		PagesCrawled int `json:"pages_crawled"`
	} `json:"progress"`
	Summary *struct {
		PagesCrawled   int `json:"pages_crawled"`
		ItemsExtracted int `json:"items_extracted"`
	} `json:"summary"`
	Error string `json:"error"`
}

// pollJob polls the job endpoint until the status predicate holds.
func pollJob(t *testing.T, apiURL, id string, want func(jobView) bool) jobView {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(apiURL + "/api/jobs/" + id)
		if err != nil {
			t.Fatalf("GET job: %v", err)
		}
		var job jobView
		decodeBody(t, resp, &job)
		if want(job) {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach the wanted state in time", id)
	return jobView{}
}

// --- Health and One-Shot Tests ---

func TestAPIHealth(t *testing.T) {
	_, api := newTestServer(t)

	resp, err := http.Get(api.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestAPIExtract(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, listingPage, "")
	}))
	defer upstream.Close()

	_, api := newTestServer(t)

	resp := postJSON(t, api.URL+"/api/extract", map[string]string{"url": upstream.URL + "/products"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Count int `json:"count"`
		Items []struct {
			Fields map[string]any `json:"fields"`
		} `json:"items"`
	}
	decodeBody(t, resp, &body)
	if body.Count != 3 {
		t.Fatalf("expected 3 items, got %d", body.Count)
	}
	if got := body.Items[0].Fields["title"]; got != "Widget One" {
		t.Errorf("expected title Widget One, got %v", got)
	}
}

func TestAPIExtractRejectsBadInput(t *testing.T) {
	_, api := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"bad scheme", `{"url":"ftp://example.com"}`},
		{"bad mode", `{"url":"https://example.com","mode":"warp"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(api.URL+"/api/extract", "application/json", bytes.NewReader([]byte(tt.body)))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestAPIAnalyze(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, listingPage, `<a class="next" href="/products?page=2">Next</a>`)
	}))
	defer upstream.Close()

	_, api := newTestServer(t)

	resp := postJSON(t, api.URL+"/api/analyze", map[string]any{"url": upstream.URL + "/products", "structured": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Patterns struct {
			Containers []struct {
				Selector string `json:"selector"`
				Count    int    `json:"count"`
			} `json:"containers"`
			Pagination *struct {
				Kind string `json:"kind"`
			} `json:"pagination"`
		} `json:"patterns"`
	}
	decodeBody(t, resp, &body)
	if len(body.Patterns.Containers) == 0 {
		t.Fatal("expected at least one container candidate")
	}
	if body.Patterns.Containers[0].Count != 3 {
		t.Errorf("expected best container count 3, got %d", body.Patterns.Containers[0].Count)
	}
	if body.Patterns.Pagination == nil {
		t.Error("expected a pagination hint")
	}
}

// --- Job Lifecycle Tests ---

func TestAPICrawlJobLifecycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, listingPage, `<a class="next" href="/page/2">Next</a>`)
	})
	mux.HandleFunc("/page/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, listingPage, "")
	})
	upstream := httptest.NewServer(mux)
	defer upstream.Close()

	_, api := newTestServer(t)

	resp := postJSON(t, api.URL+"/api/crawl", map[string]any{"urls": []string{upstream.URL + "/"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created jobView
	decodeBody(t, resp, &created)
	if created.ID == "" || created.Status != JobRunning {
		t.Fatalf("expected a running job, got %+v", created)
	}

	done := pollJob(t, api.URL, created.ID, func(j jobView) bool { return j.Status == JobDone })
	if done.Summary == nil {
		t.Fatal("expected a summary on the finished job")
	}
	if done.Summary.PagesCrawled != 2 {
		t.Errorf("expected 2 pages crawled, got %d", done.Summary.PagesCrawled)
	}
	if done.Summary.ItemsExtracted != 6 {
		t.Errorf("expected 6 items, got %d", done.Summary.ItemsExtracted)
	}

	listResp, err := http.Get(api.URL + "/api/jobs")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	var jobs []jobView
	decodeBody(t, listResp, &jobs)
	if len(jobs) != 1 {
		t.Errorf("expected 1 job in the list, got %d", len(jobs))
	}
}

func TestAPICrawlRejectsConcurrentJob(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, listingPage, `<a class="next" href="/page/2">Next</a>`)
	})
	mux.HandleFunc("/page/2", func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprintf(w, listingPage, "")
	})
	upstream := httptest.NewServer(mux)
	defer upstream.Close()

	_, api := newTestServer(t)

	resp := postJSON(t, api.URL+"/api/crawl", map[string]any{"urls": []string{upstream.URL + "/"}})
	var created jobView
	decodeBody(t, resp, &created)

	// The job is blocked fetching page 2, so a second job must be refused.
	second := postJSON(t, api.URL+"/api/crawl", map[string]any{"urls": []string{upstream.URL + "/"}})
	second.Body.Close()
	if second.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for a concurrent job, got %d", second.StatusCode)
	}

	close(release)
	pollJob(t, api.URL, created.ID, func(j jobView) bool { return j.Status == JobDone })
}

func TestAPIJobPauseResume(t *testing.T) {
	var entered sync.Once
	atPage3 := make(chan struct{})
	release := make(chan struct{})

	mux := http.NewServeMux()
	for i := 1; i <= 5; i++ {
		page := i
		mux.HandleFunc(fmt.Sprintf("/page/%d", page), func(w http.ResponseWriter, r *http.Request) {
			if page == 3 {
				entered.Do(func() { close(atPage3) })
				<-release
			}
			next := ""
			if page < 5 {
				next = fmt.Sprintf(`<a class="next" href="/page/%d">Next</a>`, page+1)
			}
			fmt.Fprintf(w, listingPage, next)
		})
	}
	upstream := httptest.NewServer(mux)
	defer upstream.Close()

	_, api := newTestServer(t)

	resp := postJSON(t, api.URL+"/api/crawl", map[string]any{"urls": []string{upstream.URL + "/page/1"}})
	var created jobView
	decodeBody(t, resp, &created)

	select {
	case <-atPage3:
	case <-time.After(10 * time.Second):
		t.Fatal("crawl never reached page 3")
	}

	// Pause lands while page 3 is in flight; the loop exits after it.
	pauseResp := postJSON(t, api.URL+"/api/jobs/"+created.ID+"/pause", nil)
	pauseResp.Body.Close()
	if pauseResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from pause, got %d", pauseResp.StatusCode)
	}
	close(release)

	paused := pollJob(t, api.URL, created.ID, func(j jobView) bool { return j.Status == JobPaused })
	if paused.Summary == nil || paused.Summary.PagesCrawled != 3 {
		t.Fatalf("expected 3 pages at pause, got %+v", paused.Summary)
	}

	resumeResp := postJSON(t, api.URL+"/api/jobs/"+created.ID+"/resume", nil)
	resumeResp.Body.Close()
	if resumeResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from resume, got %d", resumeResp.StatusCode)
	}

	done := pollJob(t, api.URL, created.ID, func(j jobView) bool { return j.Status == JobDone })
	if done.Summary.PagesCrawled != 5 {
		t.Errorf("expected 5 pages after resume, got %d", done.Summary.PagesCrawled)
	}
	if done.Summary.ItemsExtracted != 15 {
		t.Errorf("expected 15 items after resume, got %d", done.Summary.ItemsExtracted)
	}
}

func TestAPIJobNotFound(t *testing.T) {
	_, api := newTestServer(t)

	resp, err := http.Get(api.URL + "/api/jobs/job-0")
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	pauseResp := postJSON(t, api.URL+"/api/jobs/job-0/pause", nil)
	pauseResp.Body.Close()
	if pauseResp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", pauseResp.StatusCode)
	}
}

func TestAPICrawlRejectsBadRequest(t *testing.T) {
	_, api := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"no urls", `{}`},
		{"bad url", `{"urls":["not a url"]}`},
		{"bad format", `{"urls":["https://example.com"],"format":"parquet"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(api.URL+"/api/crawl", "application/json", bytes.NewReader([]byte(tt.body)))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}
