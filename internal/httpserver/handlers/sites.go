package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/asksite/internal/logger"
)

type siteItem struct {
	domain.Site
	Age       string `json:"age,omitempty"`
	ChatReady bool   `json:"chat_ready"`
}

type sitesResponse struct {
	Sites []siteItem `json:"sites"`
}

type deriveRequest struct {
	URL string `json:"url"`
}

type crawlResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

func toSiteItem(s domain.Site, minPages int, now time.Time) siteItem {
	item := siteItem{Site: s, ChatReady: s.ChatReady(minPages)}
	if !s.CrawlTime.IsZero() {
		item.Age = domain.FormatAge(s.CrawlTime, now)
	}
	return item
}

// Sites refreshes the registry from the backend and lists it.
func Sites(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sites, err := d.Registry.Refresh(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		now := time.Now()
		items := make([]siteItem, 0, len(sites))
		for _, s := range sites {
			items = append(items, toSiteItem(s, d.MinPagesToChat, now))
		}
		writeJSON(w, http.StatusOK, sitesResponse{Sites: items})
	}
}

// Derive computes the crawl fields for the page the user is on.
func Derive(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deriveRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		c, err := d.Registry.Describe(req.URL, d.MinPagesToChat)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// Crawl asks the backend to analyze a site.
func Crawl(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var info domain.SiteInfo
		if err := decodeJSON(w, r, &info); err != nil {
			writeError(w, err)
			return
		}

		receipt, err := d.Session.RequestCrawl(r.Context(), info)
		if err != nil {
			writeError(w, err)
			return
		}

		d.Logger.Info("crawl accepted",
			logger.String("domain_url", info.DomainURL))
		writeJSON(w, http.StatusAccepted, crawlResponse{
			Accepted: receipt.Accepted,
			Message:  receipt.Message,
		})
	}
}

// Stats polls one site's crawl progress.
func Stats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req siteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		site, err := d.Registry.RefreshStats(r.Context(), req.DomainURL)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSiteItem(*site, d.MinPagesToChat, time.Now()))
	}
}
