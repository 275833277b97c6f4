package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/asksite/internal/session"
)

type healthzResponse struct {
	Status        string        `json:"status"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	SessionState  session.State `json:"session_state"`
	KnownSites    int           `json:"known_sites"`
	Version       string        `json:"version,omitempty"`
	Commit        string        `json:"commit,omitempty"`
	BuildDate     string        `json:"build_date,omitempty"`
	GoVersion     string        `json:"go_version,omitempty"`
}

// Healthz is liveness only: it never calls the backend.
func Healthz(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
			UptimeSeconds: time.Since(start).Seconds(),
		}
		if d.Session != nil {
			resp.SessionState = d.Session.Snapshot().State
		}
		if d.Registry != nil {
			resp.KnownSites = d.Registry.Count()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
