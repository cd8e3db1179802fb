package automod

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"warden/internal/storage"
)

func TestPhishingRefreshAndMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["bad.example", "Evil.example"]`))
	}))
	defer server.Close()

	detector := NewPhishingDetector(server.URL, zap.NewNop())
	if err := detector.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if detector.FeedSize() != 2 {
		t.Fatalf("expected 2 feed domains, got %d", detector.FeedSize())
	}

	settings := storage.PhishingSettings{Enabled: true, UseExternalFeed: true}

	domain, ok := detector.Match("free nitro at https://bad.example/claim", settings)
	if !ok || domain != "bad.example" {
		t.Fatalf("expected feed match, got %q ok=%v", domain, ok)
	}
	if _, ok := detector.Match("see https://good.example", settings); ok {
		t.Fatalf("unlisted domain must not match")
	}
	if _, ok := detector.Match("bad.example without a scheme", settings); ok {
		t.Fatalf("only http(s) links are scanned")
	}

	// The feed is ignored when the guild opted out of it.
	settings.UseExternalFeed = false
	if _, ok := detector.Match("https://bad.example", settings); ok {
		t.Fatalf("feed must be ignored with UseExternalFeed off")
	}

	settings.CustomDomains = []string{"Custom.Example"}
	domain, ok = detector.Match("go to https://login.custom.example/verify", settings)
	if !ok || domain != "login.custom.example" {
		t.Fatalf("expected custom domain match, got %q ok=%v", domain, ok)
	}
}

func TestPhishingRefreshKeepsFeedOnError(t *testing.T) {
	failing := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`["bad.example"]`))
	}))
	defer server.Close()

	detector := NewPhishingDetector(server.URL, zap.NewNop())
	if err := detector.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	failing = true
	if err := detector.Refresh(context.Background()); err == nil {
		t.Fatalf("expected an error from the failing feed")
	}
	if detector.FeedSize() != 1 {
		t.Fatalf("previous feed should survive a failed refresh, size=%d", detector.FeedSize())
	}
}

func TestPhishingEmptyFeedURL(t *testing.T) {
	detector := NewPhishingDetector("", zap.NewNop())
	if err := detector.Refresh(context.Background()); err != nil {
		t.Fatalf("empty feed URL should be a no-op, got %v", err)
	}
}
