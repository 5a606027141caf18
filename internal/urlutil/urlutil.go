// Package urlutil provides the small URL helpers shared by the queue,
// robots gate, fetchers, and crawl loop.
package urlutil

import (
	"net/url"
	"strings"
)

// Resolve joins href against base and returns the absolute URL.
// It reports false when either part does not parse or href is empty.
func Resolve(base, href string) (string, bool) {
	if href == "" {
		return "", false
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return b.ResolveReference(ref).String(), true
}

// ResolveOr joins href against base, returning href untouched when
// resolution fails. Extraction keeps whatever the page offered rather
// than losing the value.
func ResolveOr(base, href string) string {
	if abs, ok := Resolve(base, href); ok {
		return abs
	}
	return href
}

// Domain returns the lowercased host of rawurl. A bare path with no
// host (e.g. "example.com/page" without a scheme) returns the path, so
// callers always get a usable per-domain key.
func Domain(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	if u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return u.Path
}

// SameDomain reports whether two URLs share a host.
func SameDomain(a, b string) bool {
	return Domain(a) == Domain(b)
}

// IsAllowedExtension reports whether rawurl does NOT end in one of the
// banned suffixes. Matching is case-insensitive over the whole URL
// string, mirroring how exclude lists are written (".pdf", ".zip").
func IsAllowedExtension(rawurl string, banned []string) bool {
	lower := strings.ToLower(rawurl)
	for _, ext := range banned {
		if ext == "" {
			continue
		}
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return false
		}
	}
	return true
}

// IsFetchable reports whether rawurl is an absolute http(s) URL.
func IsFetchable(rawurl string) bool {
	u, err := url.Parse(rawurl)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
