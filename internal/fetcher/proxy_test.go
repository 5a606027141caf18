package fetcher

import (
	"errors"
	"testing"

	"github.com/IshaanNene/AutoStalk/internal/config"
)

func TestProxyManagerDisabled(t *testing.T) {
	pm := NewProxyManager(&config.ProxyConfig{Enabled: false}, testLogger)
	if pm != nil {
		t.Fatal("disabled config should yield a nil manager")
	}
	// nil manager must be safe to call
	if pm.HTTPProxy() != nil {
		t.Error("nil manager HTTPProxy should be nil")
	}
	if pm.BrowserProxy() != "" {
		t.Error("nil manager BrowserProxy should be empty")
	}
}

func TestProxyManagerRoundRobin(t *testing.T) {
	pm := NewProxyManager(&config.ProxyConfig{
		Enabled:  true,
		Rotation: "round_robin",
		URLs:     []string{"http://p1:8080", "http://p2:8080"},
	}, testLogger)
	if pm == nil {
		t.Fatal("expected proxy manager")
	}

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		u := pm.HTTPProxy()
		if u == nil {
			t.Fatal("expected a proxy")
		}
		seen[u.Host]++
	}
	if seen["p1:8080"] != 2 || seen["p2:8080"] != 2 {
		t.Errorf("round robin should alternate evenly, got %v", seen)
	}
}

func TestProxyManagerRandomStaysInSet(t *testing.T) {
	pm := NewProxyManager(&config.ProxyConfig{
		Enabled:  true,
		Rotation: "random",
		URLs:     []string{"http://p1:8080", "http://p2:8080", "http://p3:8080"},
	}, testLogger)

	valid := map[string]bool{"p1:8080": true, "p2:8080": true, "p3:8080": true}
	for i := 0; i < 20; i++ {
		u := pm.HTTPProxy()
		if u == nil || !valid[u.Host] {
			t.Fatalf("random rotation returned unexpected proxy %v", u)
		}
	}
}

func TestProxyManagerThreeStrikes(t *testing.T) {
	pm := NewProxyManager(&config.ProxyConfig{
		Enabled:  true,
		Rotation: "round_robin",
		URLs:     []string{"http://bad:8080", "http://good:8080"},
	}, testLogger)

	bad := pm.HTTPProxy()
	for bad.Host != "bad:8080" {
		bad = pm.HTTPProxy()
	}

	failErr := errors.New("connect refused")
	pm.MarkFailed(bad, failErr)
	pm.MarkFailed(bad, failErr)
	if pm.HealthyCount() != 2 {
		t.Errorf("two strikes should not remove a proxy, healthy=%d", pm.HealthyCount())
	}
	pm.MarkFailed(bad, failErr)
	if pm.HealthyCount() != 1 {
		t.Errorf("three strikes should remove the proxy, healthy=%d", pm.HealthyCount())
	}

	for i := 0; i < 10; i++ {
		if u := pm.HTTPProxy(); u.Host == "bad:8080" {
			t.Fatal("unhealthy proxy still in rotation")
		}
	}

	pm.MarkHealthy(bad)
	if pm.HealthyCount() != 2 {
		t.Errorf("MarkHealthy should restore the proxy, healthy=%d", pm.HealthyCount())
	}
}

func TestCredentialsFromConfig(t *testing.T) {
	creds := CredentialsFromConfig(config.LoginConfig{
		Cookies: "session=abc; theme=dark",
		Headers: map[string]string{"Authorization": "Bearer t"},
	})
	if creds == nil {
		t.Fatal("expected credentials")
	}
	if creds.Cookies["session"] != "abc" || creds.Cookies["theme"] != "dark" {
		t.Errorf("cookie parse wrong: %v", creds.Cookies)
	}
	if creds.Headers["Authorization"] != "Bearer t" {
		t.Errorf("headers wrong: %v", creds.Headers)
	}

	if CredentialsFromConfig(config.LoginConfig{}) != nil {
		t.Error("empty login config should yield nil credentials")
	}
}
