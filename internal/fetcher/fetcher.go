package fetcher

import (
	"context"
	"net/http"

	"github.com/IshaanNene/AutoStalk/internal/config"
)

// Fetcher is the interface for all page fetcher implementations. Fetch
// returns the decoded document body for the given URL.
type Fetcher interface {
	// Fetch retrieves the content at the given URL.
	Fetch(ctx context.Context, url string) (string, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Credentials carries ready-made login state injected into fetchers:
// cookies copied from an authenticated browser session plus extra headers
// (typically an Authorization bearer token). AutoStalk never performs the
// login itself.
type Credentials struct {
	Cookies map[string]string
	Headers map[string]string
}

// CredentialsFromConfig builds Credentials from the login config section.
// Returns nil when no cookies or headers are configured.
func CredentialsFromConfig(cfg config.LoginConfig) *Credentials {
	cookies := cfg.CookieMap()
	if len(cookies) == 0 && len(cfg.Headers) == 0 {
		return nil
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &Credentials{Cookies: cookies, Headers: headers}
}

// Apply sets the credential cookies and headers on an outgoing request.
func (c *Credentials) Apply(req *http.Request) {
	if c == nil {
		return
	}
	for name, value := range c.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	for name, value := range c.Headers {
		req.Header.Set(name, value)
	}
}
