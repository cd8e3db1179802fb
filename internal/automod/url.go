package automod

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

func extractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

// normalizeDomain lowercases and punycodes the host of a link so lookalike
// unicode domains compare equal to their ASCII form in the blocklists.
func normalizeDomain(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(parsed.Hostname())
	if ascii, err := idna.ToASCII(host); err == nil {
		host = ascii
	}
	return host, nil
}

// domainBlocked matches the domain itself and any subdomain of a listed
// entry.
func domainBlocked(domain string, blocklist map[string]struct{}) bool {
	if _, ok := blocklist[domain]; ok {
		return true
	}
	for blocked := range blocklist {
		if strings.HasSuffix(domain, "."+blocked) {
			return true
		}
	}
	return false
}
