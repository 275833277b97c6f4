package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/asksite/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/asksite/internal/httpserver/mw"
)

func init() { Register(registerOps) }

func registerOps(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	ips := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	ips.Get("/readyz", handlers.Readyz(d))
	ips.Get("/infra", handlers.Infra(d))
	ips.Method("GET", "/metrics", handlers.Metrics(d))

	r.With(guard(d)...).Post("/reload", handlers.Reload(d))
}
