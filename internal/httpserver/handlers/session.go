package handlers

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/asksite/internal/logger"
)

type siteRequest struct {
	DomainURL string `json:"domain_url"`
}

type queryRequest struct {
	Text string `json:"text"`
}

// Session renders the current session snapshot.
func Session(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Session.Snapshot())
	}
}

// NewConversation starts an empty conversation, bound to domain_url when given.
func NewConversation(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req siteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		var site *domain.Site
		if strings.TrimSpace(req.DomainURL) != "" {
			var err error
			if site, err = resolveSite(d, req.DomainURL); err != nil {
				writeError(w, err)
				return
			}
		}

		snap, err := d.Session.StartNewConversation(r.Context(), site)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// Bind initializes the backend session for domain_url.
func Bind(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req siteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		site, err := resolveSite(d, req.DomainURL)
		if err != nil {
			writeError(w, err)
			return
		}

		snap, err := d.Session.BindToSite(r.Context(), site)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// Retry re-runs the failed bind.
func Retry(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := d.Session.Retry(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// Reembed re-initializes the bound site without the disk index.
func Reembed(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := d.Session.Reembed(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// Query submits a question. Backend failures are part of the transcript,
// so the reply is 200 whenever the question was accepted.
func Query(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		snap, err := d.Session.SubmitQuery(r.Context(), req.Text)
		if err != nil {
			d.Logger.Debug("query rejected", logger.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// resolveSite returns the registry entry for raw, or a site derived from the
// URL alone when the registry does not know it yet.
func resolveSite(d deps.Deps, raw string) (*domain.Site, error) {
	if site := d.Registry.Lookup(raw); site != nil {
		return site, nil
	}
	info, err := domain.DeriveSiteInfoFromURL(raw)
	if err != nil {
		return nil, err
	}
	if site := d.Registry.Lookup(info.DomainURL); site != nil {
		return site, nil
	}
	return &domain.Site{
		DomainURL:   info.DomainURL,
		HostName:    info.HostName,
		HostLogo:    domain.FaviconURL(info.DomainURL),
		DomainLimit: info.DomainLimit,
	}, nil
}
