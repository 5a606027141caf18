package engine

import "sync/atomic"

// Stats counts fetch outcomes per mode plus automatic mode switches.
type Stats struct {
	HTMLSuccess    atomic.Int64
	HTMLFailed     atomic.Int64
	BrowserSuccess atomic.Int64
	BrowserFailed  atomic.Int64
	AutoSwitches   atomic.Int64
}

// Snapshot returns the counters plus derived success rates. Rates are
// zero when no request of that mode has run yet.
func (s *Stats) Snapshot() map[string]any {
	htmlOK := s.HTMLSuccess.Load()
	htmlFail := s.HTMLFailed.Load()
	browserOK := s.BrowserSuccess.Load()
	browserFail := s.BrowserFailed.Load()

	htmlRate := 0.0
	if htmlOK+htmlFail > 0 {
		htmlRate = float64(htmlOK) / float64(htmlOK+htmlFail)
	}
	browserRate := 0.0
	if browserOK+browserFail > 0 {
		browserRate = float64(browserOK) / float64(browserOK+browserFail)
	}

	return map[string]any{
		"html_success":         htmlOK,
		"html_failed":          htmlFail,
		"browser_success":      browserOK,
		"browser_failed":       browserFail,
		"auto_switches":        s.AutoSwitches.Load(),
		"total_requests":       htmlOK + htmlFail + browserOK + browserFail,
		"html_success_rate":    htmlRate,
		"browser_success_rate": browserRate,
	}
}
