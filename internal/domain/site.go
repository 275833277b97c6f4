package domain

import "time"

// Site represents one analyzed (or analyzing) website as known to the backend.
//
// A Site is uniquely identified by its DomainURL once normalized (see SiteKey).
type Site struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// DomainURL is the canonical start URL, https-normalized.
	// Example: https://www.tum.de/en/
	DomainURL string `json:"domain_url"`

	// HostName is the display name derived from the domain.
	// Example: tum
	HostName string `json:"host_name"`

	// HostLogo is a favicon or logo URL.
	HostLogo string `json:"host_logo"`

	// DomainLimit is the crawl scope boundary, a URL prefix.
	// Example: https://www.tum.de/en/
	DomainLimit string `json:"domain_limit"`

	// ─────────────────────────────
	// Crawl progress
	// (overwritten by every refresh or stats poll)
	// ─────────────────────────────

	VisitedCount     int            `json:"visited_count"`
	DomainCounts     map[string]int `json:"domain_counts,omitempty"`
	FailedURLs       []FailedURL    `json:"failed_urls,omitempty"`
	AnalysisFinished bool           `json:"analysis_finished"`
	CrawlTime        time.Time      `json:"crawl_time"`
}

// FailedURL is one page the crawler could not fetch, with the reason it gave.
type FailedURL struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// SiteStats is the crawl progress reported by get_website_info.
type SiteStats struct {
	VisitedCount int
	DomainCounts map[string]int
	FailedURLs   []FailedURL
	CrawlTime    time.Time
	CompanyName  string
	DomainLimit  string
}

// AnalysisInfo is the progress summary returned alongside a successful initialize.
type AnalysisInfo struct {
	VisitedCount  int  `json:"visited_count"`
	CrawlFinished bool `json:"crawl_finished"`
}

// ChatReady reports whether enough of the site is indexed to start chatting.
func (s *Site) ChatReady(minPages int) bool {
	if s == nil {
		return false
	}
	return s.AnalysisFinished || s.VisitedCount >= minPages
}

// ApplyStats merges polled crawl progress into the site.
func (s *Site) ApplyStats(stats SiteStats) {
	s.VisitedCount = stats.VisitedCount
	s.DomainCounts = stats.DomainCounts
	s.FailedURLs = stats.FailedURLs
	if !stats.CrawlTime.IsZero() {
		s.CrawlTime = stats.CrawlTime
	}
	if s.DomainLimit == "" {
		s.DomainLimit = stats.DomainLimit
	}
	if s.HostName == "" {
		s.HostName = stats.CompanyName
	}
}

// Clone returns a deep copy so callers can hold a Site without sharing maps or slices.
func (s *Site) Clone() *Site {
	if s == nil {
		return nil
	}
	c := *s
	if s.DomainCounts != nil {
		c.DomainCounts = make(map[string]int, len(s.DomainCounts))
		for k, v := range s.DomainCounts {
			c.DomainCounts[k] = v
		}
	}
	if s.FailedURLs != nil {
		c.FailedURLs = append([]FailedURL(nil), s.FailedURLs...)
	}
	return &c
}
