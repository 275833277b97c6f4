package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/asksite/internal/httpserver/handlers"
)

func init() { Register(registerHistory) }

func registerHistory(r chi.Router, d deps.Deps) {
	g := r.With(guard(d)...)
	g.Get("/api/history", handlers.History(d))
	g.Post("/api/history/load", handlers.LoadHistory(d))
}
