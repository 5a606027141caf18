package types

import (
	"encoding/json"
	"time"
)

// Canonical field names produced by the extractor. Dynamically inferred
// fields may add any other key, but never these.
const (
	FieldTitle           = "title"
	FieldLink            = "link"
	FieldImage           = "image"
	FieldPrice           = "price"
	FieldPriceNormalized = "price_normalized"
	FieldDescription     = "description"

	// MetaKey is the reserved key carrying extraction metadata
	// (container selector and structural signature).
	MetaKey = "_meta"
)

// Item represents a single extracted data record.
type Item struct {
	// Fields stores the extracted key-value data.
	Fields map[string]any

	// URL is the source page URL this item was extracted from.
	URL string

	// Timestamp is when this item was created.
	Timestamp time.Time

	// Depth is the crawl depth at which this item was found.
	Depth int
}

// NewItem creates a new empty Item from a source URL.
func NewItem(sourceURL string) *Item {
	return &Item{
		Fields:    make(map[string]any),
		URL:       sourceURL,
		Timestamp: time.Now(),
	}
}

// Set sets a field value.
func (i *Item) Set(key string, value any) {
	i.Fields[key] = value
}

// SetIfAbsent sets a field value only when the key is not already present.
// It reports whether the value was written.
func (i *Item) SetIfAbsent(key string, value any) bool {
	if _, ok := i.Fields[key]; ok {
		return false
	}
	i.Fields[key] = value
	return true
}

// Get retrieves a field value.
func (i *Item) Get(key string) (any, bool) {
	v, ok := i.Fields[key]
	return v, ok
}

// GetString retrieves a field value as a string.
func (i *Item) GetString(key string) string {
	v, ok := i.Fields[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// Has returns true if the field exists.
func (i *Item) Has(key string) bool {
	_, ok := i.Fields[key]
	return ok
}

// Delete removes a field.
func (i *Item) Delete(key string) {
	delete(i.Fields, key)
}

// Keys returns all field names.
func (i *Item) Keys() []string {
	keys := make([]string, 0, len(i.Fields))
	for k := range i.Fields {
		keys = append(keys, k)
	}
	return keys
}

// ToJSON serializes the item to JSON bytes.
func (i *Item) ToJSON() ([]byte, error) {
	return json.Marshal(struct {
		Fields    map[string]any `json:"fields"`
		URL       string         `json:"url"`
		Timestamp time.Time      `json:"timestamp"`
		Depth     int            `json:"depth"`
	}{
		Fields:    i.Fields,
		URL:       i.URL,
		Timestamp: i.Timestamp,
		Depth:     i.Depth,
	})
}

// ToFlatMap returns a flat map suitable for CSV export.
func (i *Item) ToFlatMap() map[string]string {
	flat := make(map[string]string, len(i.Fields)+2)
	flat["_url"] = i.URL
	flat["_timestamp"] = i.Timestamp.Format(time.RFC3339)

	for k, v := range i.Fields {
		switch val := v.(type) {
		case string:
			flat[k] = val
		case []byte:
			flat[k] = string(val)
		default:
			b, _ := json.Marshal(val)
			flat[k] = string(b)
		}
	}
	return flat
}

// Clone creates a deep copy of the item.
func (i *Item) Clone() *Item {
	clone := &Item{
		Fields:    make(map[string]any, len(i.Fields)),
		URL:       i.URL,
		Timestamp: i.Timestamp,
		Depth:     i.Depth,
	}
	for k, v := range i.Fields {
		clone.Fields[k] = v
	}
	return clone
}
