package crawl

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"
)

// State is the lifecycle of a crawl session.
type State int32

const (
	StateRunning State = iota
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session holds the mutable state of one crawl. The counters and sets
// are owned by the crawl loop and mutated only there; the state word is
// the single field other goroutines touch, through Pause/Resume/Stop.
type Session struct {
	ID         string
	state      atomic.Int32
	startTime  time.Time
	pagesTotal int

	pagesCrawled   int
	itemsExtracted int
	errors         int

	visited      map[string]struct{}
	domains      map[string]struct{}
	domainCounts map[string]int

	lastCheckpoint time.Time
}

// newSession creates a running session. pagesTotal 0 means no page cap.
func newSession(id string, pagesTotal int) *Session {
	return &Session{
		ID:         id,
		startTime:  time.Now(),
		pagesTotal: pagesTotal,
		visited:    make(map[string]struct{}),
		domains:    make(map[string]struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Pause moves a running session to paused. The crawl loop exits at its
// next iteration boundary with all state intact.
func (s *Session) Pause() bool {
	return s.state.CompareAndSwap(int32(StateRunning), int32(StatePaused))
}

// Resume moves a paused session back to running. A stopped session
// stays stopped.
func (s *Session) Resume() bool {
	return s.state.CompareAndSwap(int32(StatePaused), int32(StateRunning))
}

// Stop ends the session from either live state. Stopped is terminal.
func (s *Session) Stop() bool {
	return s.state.CompareAndSwap(int32(StateRunning), int32(StateStopped)) ||
		s.state.CompareAndSwap(int32(StatePaused), int32(StateStopped))
}

func (s *Session) isVisited(url string) bool {
	_, ok := s.visited[url]
	return ok
}

// newSessionID derives a short hex id from the start timestamp.
func newSessionID(t time.Time) string {
	sum := md5.Sum([]byte(strconv.FormatInt(t.UnixNano(), 10)))
	return hex.EncodeToString(sum[:])[:12]
}
