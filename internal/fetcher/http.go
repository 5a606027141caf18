package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/sync/semaphore"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/internal/types"
)

// maxBodySize caps response bodies at 10 MiB.
const maxBodySize = 10 << 20

// HTTPFetcher implements Fetcher using net/http. A weighted semaphore caps
// concurrent fetches across all callers; the cap spans the whole attempt
// loop, not individual attempts.
type HTTPFetcher struct {
	client *http.Client
	cfg    *config.CrawlerConfig
	creds  *Credentials
	proxy  *ProxyManager
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// HTTPOption configures the HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPProxy sets the proxy manager consulted on every request.
func WithHTTPProxy(pm *ProxyManager) HTTPOption {
	return func(f *HTTPFetcher) { f.proxy = pm }
}

// WithHTTPCredentials sets login cookies and headers sent on every request.
func WithHTTPCredentials(creds *Credentials) HTTPOption {
	return func(f *HTTPFetcher) { f.creds = creds }
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger, opts ...HTTPOption) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	f := &HTTPFetcher{
		cfg:    &cfg.Crawler,
		sem:    semaphore.NewWeighted(int64(cfg.Crawler.MaxConcurrency)),
		logger: logger.With("component", "http_fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // We handle decompression ourselves (including brotli)
	}
	if f.proxy != nil {
		transport.Proxy = f.proxy.ProxyFunc()
	}

	f.client = &http.Client{
		Transport: transport,
		Jar:       jar,
	}

	return f, nil
}

// Fetch retrieves a URL, retrying up to crawler.retry times on timeout,
// transport error, non-200 status, or empty body. A randomized delay from
// delay_range is slept after every attempt, success or failure. Returns the
// decoded body on 200; an ErrMaxRetries-wrapped error once retries are
// exhausted.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return "", &types.FetchError{URL: url, Err: err, Retryable: false}
	}
	defer f.sem.Release(1)

	var lastErr error
	for attempt := 1; attempt <= f.cfg.Retry; attempt++ {
		body, err := f.attempt(ctx, url)
		f.sleepDelay(ctx, retryAfterOf(err))
		if err == nil {
			return body, nil
		}
		lastErr = err

		var fe *types.FetchError
		switch {
		case errors.As(err, &fe) && fe.StatusCode > 0:
			f.logger.Warn("fetch failed", "url", url, "attempt", attempt, "status", fe.StatusCode)
		case errors.Is(err, context.DeadlineExceeded):
			f.logger.Warn("fetch timed out", "url", url, "attempt", attempt)
		default:
			f.logger.Warn("fetch failed", "url", url, "attempt", attempt, "error", err)
		}

		if ctx.Err() != nil {
			break
		}
	}

	return "", &types.FetchError{
		URL: url,
		Err: fmt.Errorf("%w after %d attempts: %v", types.ErrMaxRetries, f.cfg.Retry, lastErr),
	}
}

// attempt performs one HTTP request bounded by crawler.request_timeout.
func (f *HTTPFetcher) attempt(ctx context.Context, url string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", &types.FetchError{URL: url, Err: err, Retryable: false}
	}

	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	f.creds.Apply(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &types.FetchError{URL: url, Err: err, Retryable: isRetryableError(err)}
	}
	defer resp.Body.Close()

	// Respect Retry-After on 429 so the post-attempt sleep can stretch.
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &types.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP 429: rate limited"),
			Retryable:  true,
			RetryAfter: retryAfter,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &types.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
			Retryable:  true,
		}
	}

	reader, err := decompressReader(resp, io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", &types.FetchError{URL: url, Err: err, Retryable: false}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", &types.FetchError{URL: url, Err: err, Retryable: true}
	}
	if len(body) == 0 {
		return "", &types.FetchError{URL: url, Err: types.ErrEmptyResponse, Retryable: true}
	}

	f.logger.Debug("fetch complete", "url", url, "size", len(body))
	return string(body), nil
}

// sleepDelay sleeps a random duration from delay_range, stretched to cover a
// server-requested Retry-After. Returns early on context cancellation.
func (f *HTTPFetcher) sleepDelay(ctx context.Context, retryAfter time.Duration) {
	d := randomDelay(f.cfg.Delays())
	if retryAfter > d {
		d = retryAfter
	}
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (f *HTTPFetcher) userAgent() string {
	if f.cfg.UserAgent != "" {
		return f.cfg.UserAgent
	}
	return "AutoStalk/" + config.Version
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

// randomDelay draws a uniform duration from [min, max).
func randomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// retryAfterOf pulls the Retry-After hint out of a fetch error, if any.
func retryAfterOf(err error) time.Duration {
	var fe *types.FetchError
	if errors.As(err, &fe) {
		return fe.RetryAfter
	}
	return 0
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
// Covers timeouts, connection resets, unexpected EOF, and connection refused.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellation is NOT retryable; a per-attempt deadline is.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Unexpected EOF mid-stream is retryable
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	// Network-level errors
	if netErr, ok := err.(net.Error); ok {
		if netErr.Timeout() {
			return true
		}
	}
	// Connection reset by peer, connection refused
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second // default back-off
	}
	// Try seconds integer
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120 // cap at 2 minutes
		}
		return time.Duration(secs) * time.Second
	}
	// Try HTTP-date
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}
