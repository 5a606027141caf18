package crawl

import (
	"fmt"
	"time"

	"github.com/IshaanNene/AutoStalk/internal/types"
)

// progress builds a snapshot of the session so far.
func (s *Session) progress() types.ProgressSnapshot {
	pct := 0.0
	if s.pagesTotal > 0 {
		pct = float64(s.pagesCrawled) / float64(s.pagesTotal) * 100
	}
	elapsed := time.Since(s.startTime).Seconds()
	pps := 0.0
	if elapsed > 0 {
		pps = float64(s.pagesCrawled) / elapsed
	}
	eta := 0.0
	if pps > 0 && s.pagesTotal > s.pagesCrawled {
		eta = float64(s.pagesTotal-s.pagesCrawled) / pps
	}
	return types.ProgressSnapshot{
		PagesCrawled:   s.pagesCrawled,
		PagesTotal:     s.pagesTotal,
		ProgressPct:    pct,
		ItemsExtracted: s.itemsExtracted,
		Errors:         s.errors,
		PagesPerSec:    pps,
		ETASeconds:     eta,
	}
}

// reportProgress pushes a snapshot to the progress sink after every
// page and logs a human line every ten pages.
func (h *Handler) reportProgress(s *Session) {
	snap := s.progress()

	if s.pagesCrawled%10 == 0 {
		h.logger.Info("progress",
			"pages", fmt.Sprintf("%d/%d", snap.PagesCrawled, snap.PagesTotal),
			"pct", fmt.Sprintf("%.1f", snap.ProgressPct),
			"items", snap.ItemsExtracted,
			"errors", snap.Errors,
			"pages_per_sec", fmt.Sprintf("%.2f", snap.PagesPerSec),
			"eta_min", fmt.Sprintf("%.1f", snap.ETASeconds/60))
	}

	if h.progressSink != nil {
		h.progressSink(snap)
	}
}
