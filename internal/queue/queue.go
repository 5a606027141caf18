// Package queue implements the FIFO crawl frontier with built-in URL
// deduplication and depth tracking.
package queue

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/IshaanNene/AutoStalk/internal/types"
)

// Queue is a FIFO frontier. A URL enters the pending list at most once
// per session: Add is idempotent against the ever-enqueued set, which
// only grows. Depth is recorded when a URL is added (parent depth + 1)
// and survives the URL being popped.
type Queue struct {
	mu      sync.Mutex
	pending []string
	seen    map[string]struct{}
	depths  map[string]int
}

// snapshot is the wire form. The "queue" and "visited" keys are the
// stable layout consumed by resume; "depths" is an additive key so
// depth limits survive a resume.
type snapshot struct {
	Queue   []string       `json:"queue"`
	Visited []string       `json:"visited"`
	Depths  map[string]int `json:"depths,omitempty"`
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		seen:   make(map[string]struct{}),
		depths: make(map[string]int),
	}
}

// Add enqueues url unless it was ever enqueued before. Seeds pass
// parent == "" and get depth 0; otherwise depth is the parent's depth
// plus one. It reports whether the URL was actually enqueued.
func (q *Queue) Add(url, parent string) bool {
	if url == "" {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.seen[url]; dup {
		return false
	}

	depth := 0
	if parent != "" {
		depth = q.depths[parent] + 1
	}

	q.pending = append(q.pending, url)
	q.seen[url] = struct{}{}
	q.depths[url] = depth
	return true
}

// Pop removes and returns the oldest pending URL.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return "", false
	}
	url := q.pending[0]
	q.pending = q.pending[1:]
	return url, true
}

// HasNext reports whether any URL is pending.
func (q *Queue) HasNext() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0
}

// Size returns the number of pending URLs.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Seen reports whether url was ever enqueued this session.
func (q *Queue) Seen(url string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.seen[url]
	return ok
}

// Depth returns the recorded crawl depth for url, 0 when unknown.
func (q *Queue) Depth(url string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depths[url]
}

// SeenCount returns the size of the ever-enqueued set.
func (q *Queue) SeenCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.seen)
}

// Reset drops all pending URLs, the dedup set, and the depth records.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.seen = make(map[string]struct{})
	q.depths = make(map[string]int)
}

// Serialize renders the queue as JSON: pending URLs in FIFO order, the
// dedup set (sorted for stable output), and the depth map.
func (q *Queue) Serialize() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := snapshot{
		Queue:   append([]string(nil), q.pending...),
		Visited: make([]string, 0, len(q.seen)),
		Depths:  make(map[string]int, len(q.depths)),
	}
	for u := range q.seen {
		snap.Visited = append(snap.Visited, u)
	}
	sort.Strings(snap.Visited)
	for u, d := range q.depths {
		snap.Depths[u] = d
	}
	return json.Marshal(snap)
}

// Deserialize replaces the queue state with the given serialized form.
func (q *Queue) Deserialize(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return types.ErrBadCheckpoint
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append([]string(nil), snap.Queue...)
	q.seen = make(map[string]struct{}, len(snap.Visited))
	for _, u := range snap.Visited {
		q.seen[u] = struct{}{}
	}
	q.depths = make(map[string]int, len(snap.Depths))
	for u, d := range snap.Depths {
		q.depths[u] = d
	}
	// Pending URLs always count as enqueued, even under an old blob
	// that carried no dedup set.
	for _, u := range q.pending {
		q.seen[u] = struct{}{}
	}
	return nil
}
