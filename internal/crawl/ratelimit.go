package crawl

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter spaces requests per host. Each host gets its own limiter
// with burst 1 on first touch, so the first request goes through at
// once and every later one waits out the remaining interval.
type HostLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter enforcing the given minimum interval
// between requests to one host. A zero interval disables the wait.
func NewHostLimiter(interval time.Duration) *HostLimiter {
	return &HostLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the host's next slot, or until ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[host] = lim
	}
	l.mu.Unlock()
	return lim.Wait(ctx)
}
