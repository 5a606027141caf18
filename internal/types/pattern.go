package types

// Pagination hint kinds.
const (
	PaginationButton   = "button"
	PaginationLinks    = "links"
	PaginationLoadMore = "load_more"
)

// ContainerCandidate is a repeating DOM element hypothesised to be one
// record of a listing (product card, article teaser, search hit).
type ContainerCandidate struct {
	Selector  string  `json:"selector"`
	Signature string  `json:"signature"`
	Count     int     `json:"count"`
	Score     float64 `json:"score"`
	Sample    *Item   `json:"sample,omitempty"`
}

// PaginationHint describes how the page links to further result pages.
// Kind selects the variant; only the fields of that variant are set.
type PaginationHint struct {
	Kind string `json:"kind"`

	// button
	NextURL  string `json:"next_url,omitempty"`
	Selector string `json:"selector,omitempty"` // also set for load_more

	// links
	URLPattern string `json:"url_pattern,omitempty"`
	Current    int    `json:"current,omitempty"`
	KnownPages []int  `json:"known_pages,omitempty"`
}

// ScrollHint reports indicators of infinite-scroll loading. Detection
// only; nothing in the crawler drives the scroll.
type ScrollHint struct {
	Indicators []string `json:"indicators"`
}

// PatternSet is the per-domain result of page analysis: repeating
// container candidates sorted by score, an optional pagination hint, an
// optional infinite-scroll hint, and relative selectors for the fields
// of the top container.
type PatternSet struct {
	Containers       []ContainerCandidate `json:"containers"`
	Pagination       *PaginationHint      `json:"pagination,omitempty"`
	InfiniteScroll   *ScrollHint          `json:"infinite_scroll,omitempty"`
	ContentStructure map[string]string    `json:"content_structure,omitempty"`
}

// Best returns the highest-scored container candidate, or nil when the
// page exposed no repeating pattern.
func (ps *PatternSet) Best() *ContainerCandidate {
	if ps == nil || len(ps.Containers) == 0 {
		return nil
	}
	return &ps.Containers[0]
}
