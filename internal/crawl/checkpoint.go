package crawl

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/IshaanNene/AutoStalk/internal/types"
)

// checkpointBlob is the resume wire format. The queue field nests the
// queue's own serialized form verbatim; visited is the set of fetched
// URLs, distinct from the queue's ever-enqueued set.
type checkpointBlob struct {
	SessionID      string          `json:"session_id"`
	PagesCrawled   int             `json:"pages_crawled"`
	ItemsExtracted int             `json:"items_extracted"`
	Queue          json.RawMessage `json:"queue"`
	Visited        []string        `json:"visited"`
	Domains        []string        `json:"domains"`
	Timestamp      string          `json:"timestamp"`
}

// checkpointData serializes the current session and queue.
func (h *Handler) checkpointData(s *Session) ([]byte, error) {
	qblob, err := h.queue.Serialize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(checkpointBlob{
		SessionID:      s.ID,
		PagesCrawled:   s.pagesCrawled,
		ItemsExtracted: s.itemsExtracted,
		Queue:          qblob,
		Visited:        sortedKeys(s.visited),
		Domains:        sortedKeys(s.domains),
		Timestamp:      time.Now().Format(time.RFC3339),
	})
}

// checkpoint hands the current state to the checkpoint sink, if any.
// Sink failures are logged, never fatal.
func (h *Handler) checkpoint(s *Session) {
	if h.checkpointSink == nil {
		return
	}
	blob, err := h.checkpointData(s)
	if err != nil {
		h.logger.Warn("checkpoint serialization failed", "error", err)
		return
	}
	if err := h.checkpointSink(blob); err != nil {
		h.logger.Warn("checkpoint sink failed", "error", err)
		return
	}
	s.lastCheckpoint = time.Now()
	if h.metrics != nil {
		h.metrics.CheckpointsSaved.Add(1)
	}
	h.logger.Info("checkpoint saved", "session", s.ID, "pages", s.pagesCrawled)
}

// ResumeFromCheckpoint restores the queue, visited set, counters and
// domains from a checkpoint blob. The restored session is paused; the
// next Crawl call continues it with the elapsed clock reset to now.
func (h *Handler) ResumeFromCheckpoint(data []byte) error {
	var blob checkpointBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return types.ErrBadCheckpoint
	}
	if blob.SessionID == "" || blob.Queue == nil {
		return types.ErrBadCheckpoint
	}
	if err := h.queue.Deserialize(blob.Queue); err != nil {
		return err
	}

	s := newSession(blob.SessionID, 0)
	s.pagesCrawled = blob.PagesCrawled
	s.itemsExtracted = blob.ItemsExtracted
	for _, u := range blob.Visited {
		s.visited[u] = struct{}{}
	}
	for _, d := range blob.Domains {
		s.domains[d] = struct{}{}
	}
	s.state.Store(int32(StatePaused))

	h.mu.Lock()
	h.session = s
	h.mu.Unlock()

	h.logger.Info("restored from checkpoint",
		"session", s.ID,
		"pages", s.pagesCrawled,
		"visited", len(s.visited),
		"queued", h.queue.Size())
	return nil
}

// FileCheckpointSink returns a sink that writes each blob to path,
// replacing the previous one atomically.
func FileCheckpointSink(path string) CheckpointSink {
	return func(blob []byte) error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, blob, 0o644); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
