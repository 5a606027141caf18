package queue

import (
	"fmt"
	"testing"
)

func TestAddPopFIFO(t *testing.T) {
	q := New()

	urls := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
	}
	for _, u := range urls {
		if !q.Add(u, "") {
			t.Fatalf("Add(%q) = false, want true", u)
		}
	}

	if q.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", q.Size())
	}

	for i, want := range urls {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() #%d returned no URL", i)
		}
		if got != want {
			t.Errorf("Pop() #%d = %q, want %q (FIFO order broken)", i, got, want)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue should report false")
	}
}

func TestAddDeduplicates(t *testing.T) {
	q := New()

	if !q.Add("https://example.com/a", "") {
		t.Fatal("first Add should succeed")
	}
	if q.Add("https://example.com/a", "") {
		t.Error("duplicate Add should be rejected")
	}
	if q.Add("", "") {
		t.Error("empty URL should be rejected")
	}

	// A popped URL must never re-enter the queue.
	q.Pop()
	if q.Add("https://example.com/a", "") {
		t.Error("re-Add after Pop should be rejected")
	}
	if q.Size() != 0 {
		t.Errorf("Size() = %d, want 0", q.Size())
	}
	if !q.Seen("https://example.com/a") {
		t.Error("popped URL should remain in the enqueued set")
	}
}

func TestDepthTracking(t *testing.T) {
	q := New()

	q.Add("https://example.com/", "")
	q.Add("https://example.com/page/2", "https://example.com/")
	q.Add("https://example.com/page/3", "https://example.com/page/2")

	if d := q.Depth("https://example.com/"); d != 0 {
		t.Errorf("seed depth = %d, want 0", d)
	}
	if d := q.Depth("https://example.com/page/2"); d != 1 {
		t.Errorf("child depth = %d, want 1", d)
	}
	if d := q.Depth("https://example.com/page/3"); d != 2 {
		t.Errorf("grandchild depth = %d, want 2", d)
	}
	if d := q.Depth("https://example.com/unknown"); d != 0 {
		t.Errorf("unknown URL depth = %d, want 0", d)
	}

	// Depth survives popping.
	q.Pop()
	if d := q.Depth("https://example.com/"); d != 0 {
		t.Errorf("depth after pop = %d, want 0", d)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	q := New()
	q.Add("https://a.com/1", "")
	q.Add("https://a.com/2", "https://a.com/1")
	q.Add("https://b.com/1", "")
	q.Pop() // consume a.com/1; it stays in the dedup set

	blob, err := q.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	restored := New()
	if err := restored.Deserialize(blob); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	// FIFO order preserved.
	first, _ := restored.Pop()
	second, _ := restored.Pop()
	if first != "https://a.com/2" || second != "https://b.com/1" {
		t.Errorf("order after round-trip = [%q, %q], want [a.com/2, b.com/1]", first, second)
	}

	// Dedup set preserved, including the popped URL.
	if !restored.Seen("https://a.com/1") {
		t.Error("popped URL missing from restored dedup set")
	}
	if restored.Add("https://a.com/2", "") {
		t.Error("restored queue accepted a duplicate")
	}

	// Depths preserved.
	if d := restored.Depth("https://a.com/2"); d != 1 {
		t.Errorf("restored depth = %d, want 1", d)
	}
}

func TestDeserializeBadData(t *testing.T) {
	q := New()
	if err := q.Deserialize([]byte("{not json")); err == nil {
		t.Error("expected error for malformed blob")
	}
}

func TestDeserializeLegacyBlob(t *testing.T) {
	// Blobs without a depths key must still restore the dedup set and
	// treat pending URLs as enqueued.
	q := New()
	blob := []byte(`{"queue":["https://x.com/2"],"visited":["https://x.com/1"]}`)
	if err := q.Deserialize(blob); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !q.Seen("https://x.com/1") || !q.Seen("https://x.com/2") {
		t.Error("legacy blob should mark both visited and pending URLs as seen")
	}
	if d := q.Depth("https://x.com/2"); d != 0 {
		t.Errorf("legacy depth = %d, want 0", d)
	}
}

func TestReset(t *testing.T) {
	q := New()
	q.Add("https://example.com/", "")
	q.Reset()

	if q.HasNext() {
		t.Error("queue should be empty after Reset")
	}
	if q.Seen("https://example.com/") {
		t.Error("dedup set should be empty after Reset")
	}
	if !q.Add("https://example.com/", "") {
		t.Error("Add should succeed again after Reset")
	}
}

func BenchmarkAddPop(b *testing.B) {
	q := New()
	for i := 0; i < b.N; i++ {
		q.Add(fmt.Sprintf("https://example.com/page/%d", i), "")
		q.Pop()
	}
}
