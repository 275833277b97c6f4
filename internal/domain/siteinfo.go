package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidURL is returned when a URL has no usable hostname.
var ErrInvalidURL = errors.New("invalid url")

// SiteInfo is what can be derived from a page URL alone, before the backend knows the site.
type SiteInfo struct {
	DomainURL   string `json:"domain_url"`
	HostName    string `json:"host_name"`
	DomainLimit string `json:"domain_limit"`
}

// AddHTTPS prefixes https:// when the URL carries no scheme.
// Example: "example.com" -> "https://example.com"
func AddHTTPS(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

// DeriveSiteInfoFromURL derives the crawl request fields from a page URL.
// Examples:
//   - "https://www.tum.de/en/about" -> {https://www.tum.de/en/, tum, www.tum.de/en/}
//   - "example.com"                 -> {https://example.com/, example, example.com/}
//
// The result is stable: deriving again from DomainURL yields the same SiteInfo.
func DeriveSiteInfoFromURL(raw string) (SiteInfo, error) {
	u, err := url.Parse(AddHTTPS(raw))
	if err != nil {
		return SiteInfo{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return SiteInfo{}, fmt.Errorf("%w: %q has no hostname", ErrInvalidURL, raw)
	}

	domainLimit := host + "/"
	if seg := firstPathSegment(u.Path); seg != "" {
		domainLimit = host + "/" + seg + "/"
	}

	return SiteInfo{
		DomainURL:   "https://" + domainLimit,
		HostName:    hostLabel(host),
		DomainLimit: domainLimit,
	}, nil
}

// hostLabel strips a leading "www." and keeps the first DNS label.
// Example: "www.tum.de" -> "tum"
func hostLabel(host string) string {
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i]
	}
	return host
}

func firstPathSegment(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 1 {
		return parts[1]
	}
	return ""
}

// SiteKey is the comparison key used to detect duplicate sites.
// Scheme defaults to https, host is lowercased without "www.", and a
// trailing slash is ignored, so "example.com" and "www.example.com/" collide.
func SiteKey(domainURL string) string {
	normalized := AddHTTPS(domainURL)
	u, err := url.Parse(normalized)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(normalized), "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return u.Scheme + "://" + host + strings.TrimRight(u.Path, "/")
}

// FaviconURL returns a favicon service URL for the site's host, or "" when the URL is unusable.
func FaviconURL(rawURL string) string {
	u, err := url.Parse(AddHTTPS(rawURL))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(u.Hostname()) + "&sz=32"
}

// FormatAge renders how long ago t was, relative to now.
// Examples: "just now", "5m ago", "3h ago", "2d ago"
func FormatAge(t, now time.Time) string {
	minutes := int(now.Sub(t).Minutes())
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case minutes < 1440:
		return fmt.Sprintf("%dh ago", minutes/60)
	default:
		return fmt.Sprintf("%dd ago", minutes/1440)
	}
}
