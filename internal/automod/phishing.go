package automod

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"warden/internal/storage"
)

// PhishingDetector matches message links against a periodically refreshed
// external scam-domain feed plus per-guild custom domains. The feed is a
// plain JSON array of domain strings.
type PhishingDetector struct {
	mu      sync.RWMutex
	feed    map[string]struct{}
	feedURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewPhishingDetector(feedURL string, logger *zap.Logger) *PhishingDetector {
	return &PhishingDetector{
		feed:    make(map[string]struct{}),
		feedURL: feedURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Refresh replaces the feed with the latest download. The previous feed is
// kept on any error.
func (d *PhishingDetector) Refresh(ctx context.Context) error {
	if d.feedURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.feedURL, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var domains []string
	if err := json.NewDecoder(resp.Body).Decode(&domains); err != nil {
		return err
	}

	next := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		if normalized, err := normalizeDomain(domain); err == nil && normalized != "" {
			next[normalized] = struct{}{}
		}
	}

	d.mu.Lock()
	d.feed = next
	d.mu.Unlock()
	d.logger.Info("phishing feed refreshed", zap.Int("domains", len(next)))
	return nil
}

// Start refreshes once immediately, then on the interval until stop closes.
func (d *PhishingDetector) Start(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		if err := d.Refresh(context.Background()); err != nil {
			d.logger.Warn("phishing feed refresh failed", zap.Error(err))
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := d.Refresh(context.Background()); err != nil {
					d.logger.Warn("phishing feed refresh failed", zap.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()
}

// Match returns the first flagged domain found in the content.
func (d *PhishingDetector) Match(content string, settings storage.PhishingSettings) (string, bool) {
	urls := extractURLs(content)
	if len(urls) == 0 {
		return "", false
	}

	custom := make(map[string]struct{}, len(settings.CustomDomains))
	for _, domain := range settings.CustomDomains {
		if normalized, err := normalizeDomain(domain); err == nil && normalized != "" {
			custom[normalized] = struct{}{}
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, raw := range urls {
		domain, err := normalizeDomain(raw)
		if err != nil || domain == "" {
			continue
		}
		if domainBlocked(domain, custom) {
			return domain, true
		}
		if settings.UseExternalFeed && domainBlocked(domain, d.feed) {
			return domain, true
		}
	}
	return "", false
}

// FeedSize is read by the dashboard status endpoint.
func (d *PhishingDetector) FeedSize() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.feed)
}
