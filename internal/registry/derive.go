package registry

import "github.com/MrSnakeDoc/asksite/internal/domain"

// Candidate is what the surface shows for the page the user is on:
// the derived crawl fields plus what the registry already knows about them.
type Candidate struct {
	domain.SiteInfo
	HostLogo  string       `json:"host_logo"`
	Known     bool         `json:"known"`
	ChatReady bool         `json:"chat_ready"`
	Site      *domain.Site `json:"site,omitempty"`
}

// DeriveSiteInfoFromURL derives the crawl fields for a page URL. Pure.
func DeriveSiteInfoFromURL(raw string) (domain.SiteInfo, error) {
	return domain.DeriveSiteInfoFromURL(raw)
}

// Describe derives the crawl fields for a page URL and looks them up.
func (r *Registry) Describe(raw string, minPages int) (Candidate, error) {
	info, err := DeriveSiteInfoFromURL(raw)
	if err != nil {
		return Candidate{}, err
	}

	c := Candidate{SiteInfo: info, HostLogo: domain.FaviconURL(info.DomainURL)}
	if site := r.Lookup(info.DomainURL); site != nil {
		c.Known = true
		c.ChatReady = site.ChatReady(minPages)
		c.Site = site
		if site.HostLogo != "" {
			c.HostLogo = site.HostLogo
		}
	}
	return c, nil
}
