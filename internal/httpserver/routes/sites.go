package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/asksite/internal/httpserver/handlers"
)

func init() { Register(registerSites) }

func registerSites(r chi.Router, d deps.Deps) {
	g := r.With(guard(d)...)
	g.Get("/api/sites", handlers.Sites(d))
	g.Post("/api/sites/derive", handlers.Derive(d))
	g.Post("/api/sites/stats", handlers.Stats(d))

	r.With(limited(d)...).Post("/api/sites/crawl", handlers.Crawl(d))
}
