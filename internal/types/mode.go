package types

import (
	"fmt"
	"strings"
)

// Mode selects how a page is fetched.
type Mode int32

const (
	// ModeAuto starts with plain HTTP and escalates to the browser on
	// failure or empty extraction, memoising the result per host.
	ModeAuto Mode = iota

	// ModeHTML fetches over plain HTTP only.
	ModeHTML

	// ModeBrowser renders the page in a headless browser.
	ModeBrowser
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeHTML:
		return "html"
	case ModeBrowser:
		return "browser"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// ParseMode converts a config/CLI string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "html", "http":
		return ModeHTML, nil
	case "browser", "js":
		return ModeBrowser, nil
	default:
		return ModeAuto, fmt.Errorf("unknown crawl mode %q", s)
	}
}
