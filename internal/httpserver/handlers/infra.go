package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
)

type componentStatus struct {
	OK           bool   `json:"ok"`
	SitesLoaded  *int   `json:"sites_loaded,omitempty"`
	CrawlsPolled *int   `json:"crawls_polled,omitempty"`
	LastReload   string `json:"last_reload,omitempty"`
	Mode         string `json:"mode,omitempty"`
	Impact       string `json:"impact,omitempty"`
	Error        string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Session    string                     `json:"session_state"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		sitesCount := d.Registry.Count()
		crawls := len(d.Registry.TrackedCrawls())
		lastReload := "never"
		if t := d.Registry.LastRefresh(); !t.IsZero() {
			lastReload = t.Format("2006-01-02 15:04:05")
		}

		components := map[string]componentStatus{
			"backend": checkBackend(ctx, d),
			"registry": {
				OK:           sitesCount > 0,
				SitesLoaded:  &sitesCount,
				CrawlsPolled: &crawls,
				LastReload:   lastReload,
			},
			"redis": checkRedis(ctx, d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Session:    string(d.Session.Snapshot().State),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if !components["backend"].OK {
		if components["registry"].OK {
			return "offline-snapshot" // site list served from the last refresh or redis
		}
		return "critical"
	}
	if redis, ok := components["redis"]; ok && !redis.OK {
		return "degraded"
	}
	return "operational"
}

func checkBackend(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.Gateway.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Impact: "chat-and-crawl-unavailable",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: d.Gateway.BaseURL()}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "no-warm-start",
			Error:  "client not initialized",
		}
	}

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "no-warm-start",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "snapshot-enabled",
	}
}
