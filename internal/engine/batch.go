package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/IshaanNene/AutoStalk/internal/types"
)

// BatchResult is one successfully fetched page of a batch.
type BatchResult struct {
	URL  string
	HTML string
	Mode types.Mode
}

// FetchBatch fetches a set of URLs concurrently, at most maxConcurrent
// in flight. Failed fetches are logged and skipped; the results keep
// the input order.
func (e *Engine) FetchBatch(ctx context.Context, urls []string, mode types.Mode, maxConcurrent int) []BatchResult {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	results := make([]*BatchResult, len(urls))
	sem := semaphore.NewWeighted(int64(maxConcurrent))
	g, gctx := errgroup.WithContext(ctx)

	for i, url := range urls {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			htmlText, actual, err := e.Fetch(gctx, url, mode)
			if err != nil {
				e.logger.Warn("batch fetch failed", "url", url, "error", err)
				return nil
			}
			results[i] = &BatchResult{URL: url, HTML: htmlText, Mode: actual}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]BatchResult, 0, len(urls))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
