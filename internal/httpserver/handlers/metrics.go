package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
)

// Metrics exposes the Prometheus collectors.
func Metrics(_ deps.Deps) http.Handler {
	return promhttp.Handler()
}
