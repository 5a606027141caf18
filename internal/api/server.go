// Package api exposes the crawler over HTTP: one-shot extraction and
// analysis endpoints plus background crawl jobs with pause, resume and
// stop control.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/pkg/autostalk"
)

// Job statuses.
const (
	JobRunning = "running"
	JobPaused  = "paused"
	JobDone    = "done"
	JobFailed  = "failed"
)

// Job tracks one background crawl.
type Job struct {
	ID        string                      `json:"id"`
	Status    string                      `json:"status"`
	Seeds     []string                    `json:"seeds"`
	StartedAt time.Time                   `json:"started_at"`
	Progress  *autostalk.ProgressSnapshot `json:"progress,omitempty"`
	Summary   *autostalk.Summary          `json:"summary,omitempty"`
	Error     string                      `json:"error,omitempty"`

	multi     bool
	perDomain int
	client    *autostalk.Client
}

// Server is the HTTP control surface. One crawl job runs at a time;
// one-shot extraction and analysis share a client so the per-domain
// pattern cache carries across requests.
type Server struct {
	cfg    *config.Config
	mux    *http.ServeMux
	srv    *http.Server
	logger *slog.Logger

	oneMu  sync.Mutex // serializes one-shot endpoint work
	client *autostalk.Client

	mu      sync.RWMutex
	jobs    map[string]*Job
	current *Job // job in JobRunning state, nil when idle
}

// NewServer creates the API server around a validated base config.
// Per-job configs are derived from it.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	client, err := autostalk.NewWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		logger: logger.With("component", "api_server"),
		client: client,
		jobs:   make(map[string]*Job),
	}
	s.registerRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler so tests can mount the server
// directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start serves the API on addr in the background.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s}
	s.logger.Info("api server starting", "addr", addr)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the listener down and stops any running job.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.current != nil {
		s.current.client.Stop()
	}
	s.mu.Unlock()

	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// One-shot analysis
	s.mux.HandleFunc("POST /api/extract", s.handleExtract)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)

	// Crawl jobs
	s.mux.HandleFunc("POST /api/crawl", s.handleCrawl)
	s.mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/pause", s.handlePauseJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/resume", s.handleResumeJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/stop", s.handleStopJob)

	s.mux.HandleFunc("GET /api/stats", s.handleStats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

// handleExtract fetches one page and returns its extracted items.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL  string `json:"url"`
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := config.ValidateURL(req.URL); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.oneMu.Lock()
	defer s.oneMu.Unlock()
	if err := s.setOneShotMode(req.Mode); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	items, err := s.client.Extract(r.Context(), req.URL)
	if err != nil {
		s.jsonResponse(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	docs := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		doc, err := item.ToJSON()
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"url":   req.URL,
		"count": len(docs),
		"items": docs,
	})
}

// handleAnalyze fetches one page and returns its pattern set, plus the
// embedded structured data when asked.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL        string `json:"url"`
		Mode       string `json:"mode"`
		Structured bool   `json:"structured"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := config.ValidateURL(req.URL); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.oneMu.Lock()
	defer s.oneMu.Unlock()
	if err := s.setOneShotMode(req.Mode); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	patterns, err := s.client.Analyze(r.Context(), req.URL)
	if err != nil {
		s.jsonResponse(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	resp := map[string]any{
		"url":      req.URL,
		"patterns": patterns,
	}
	if req.Structured {
		blocks, err := s.client.ExtractStructured(r.Context(), req.URL)
		if err == nil {
			resp["structured"] = blocks
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// setOneShotMode applies a per-request fetch mode to the shared client.
// Callers must hold oneMu. An empty mode means auto.
func (s *Server) setOneShotMode(mode string) error {
	if mode == "" {
		mode = "auto"
	}
	return s.client.SetMode(mode)
}

// handleCrawl starts a background crawl job. Only one job runs at a
// time; a second request gets 409 until the first finishes or pauses.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs              []string `json:"urls"`
		Mode              string   `json:"mode"`
		MaxPages          int      `json:"max_pages"`
		MaxDepth          int      `json:"max_depth"`
		MultiDomain       bool     `json:"multi_domain"`
		MaxPagesPerDomain int      `json:"max_pages_per_domain"`
		Format            string   `json:"format"`
		Output            string   `json:"output"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.URLs) == 0 {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "urls is required"})
		return
	}
	for _, u := range req.URLs {
		if err := config.ValidateURL(u); err != nil {
			s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid URL %q: %v", u, err)})
			return
		}
	}

	jobCfg := *s.cfg
	jobCfg.Metrics.Enabled = false // the base client owns the metrics addr
	if req.MaxPages > 0 {
		jobCfg.MaxPages = req.MaxPages
	}
	if req.MaxDepth > 0 {
		jobCfg.MaxDepth = req.MaxDepth
	}
	if req.Format != "" {
		jobCfg.Export.Format = req.Format
	}
	if req.Output != "" {
		jobCfg.Export.Path = req.Output
	}

	client, err := autostalk.NewWithConfig(&jobCfg)
	if err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Mode != "" {
		if err := client.SetMode(req.Mode); err != nil {
			client.Close()
			s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	if _, err := client.OpenStorage(); err != nil {
		client.Close()
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	job := &Job{
		ID:        fmt.Sprintf("job-%d", time.Now().UnixMilli()),
		Status:    JobRunning,
		Seeds:     req.URLs,
		StartedAt: time.Now(),
		multi:     req.MultiDomain,
		perDomain: req.MaxPagesPerDomain,
		client:    client,
	}
	client.OnProgress(func(p autostalk.ProgressSnapshot) {
		s.mu.Lock()
		job.Progress = &p
		s.mu.Unlock()
	})

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		client.Close()
		s.jsonResponse(w, http.StatusConflict, map[string]string{"error": "a crawl job is already running"})
		return
	}
	s.current = job
	s.jobs[job.ID] = job
	// Render the response before the job goroutine can mutate the job.
	s.jsonResponse(w, http.StatusCreated, job)
	s.mu.Unlock()

	go s.runJob(job, job.Seeds)

	s.logger.Info("crawl job started", "job", job.ID, "seeds", len(req.URLs))
}

// runJob drives one crawl (or continuation) to its next boundary and
// records the outcome. seeds is nil when continuing a paused session.
func (s *Server) runJob(job *Job, seeds []string) {
	var (
		summary *autostalk.Summary
		err     error
	)
	if job.multi {
		// Multi-domain continuations must come back through the same
		// entry point or the per-host caps would be dropped.
		summary, err = job.client.CrawlMultiDomain(context.Background(), seeds, job.perDomain)
	} else {
		summary, err = job.client.Crawl(context.Background(), seeds...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil

	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
		job.client.Close()
		s.logger.Error("crawl job failed", "job", job.ID, "error", err)
		return
	}

	job.Summary = summary
	if job.client.State() == autostalk.StatePaused {
		// Client stays open so the session can be resumed.
		job.Status = JobPaused
		s.logger.Info("crawl job paused", "job", job.ID, "pages", summary.PagesCrawled)
		return
	}
	job.Status = JobDone
	job.client.Close()
	s.logger.Info("crawl job done", "job", job.ID, "pages", summary.PagesCrawled, "items", summary.ItemsExtracted)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.jsonResponse(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[r.PathValue("id")]
	if !ok {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handlePauseJob(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	job, ok := s.jobs[r.PathValue("id")]
	s.mu.RUnlock()

	if !ok {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	if !job.client.Pause() {
		s.jsonResponse(w, http.StatusConflict, map[string]string{"error": "job is not running"})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "pausing", "id": job.ID})
}

func (s *Server) handleResumeJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	job, ok := s.jobs[r.PathValue("id")]
	if !ok {
		s.mu.Unlock()
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	if job.Status != JobPaused {
		s.mu.Unlock()
		s.jsonResponse(w, http.StatusConflict, map[string]string{"error": "job is not paused"})
		return
	}
	if s.current != nil {
		s.mu.Unlock()
		s.jsonResponse(w, http.StatusConflict, map[string]string{"error": "a crawl job is already running"})
		return
	}
	job.Status = JobRunning
	s.current = job
	s.mu.Unlock()

	// A nil seed list continues the restored session.
	go s.runJob(job, nil)

	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "resumed", "id": job.ID})
}

func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	job, ok := s.jobs[r.PathValue("id")]
	if !ok {
		s.mu.Unlock()
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}

	if job.Status == JobDone || job.Status == JobFailed {
		s.mu.Unlock()
		s.jsonResponse(w, http.StatusConflict, map[string]string{"error": "job already finished"})
		return
	}

	wasPaused := job.Status == JobPaused
	job.client.Stop()
	if wasPaused {
		// No goroutine is driving a paused job, so finalize here.
		job.Status = JobDone
		job.client.Close()
	}
	s.mu.Unlock()

	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "stopping", "id": job.ID})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	var currentID string
	if s.current != nil {
		currentID = s.current.ID
	}
	jobCount := len(s.jobs)
	s.mu.RUnlock()

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"engine":      s.client.Stats(),
		"jobs":        jobCount,
		"current_job": currentID,
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
