package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/asksite/internal/httpserver/handlers"
)

func init() { Register(registerSession) }

func registerSession(r chi.Router, d deps.Deps) {
	g := r.With(guard(d)...)
	g.Get("/api/session", handlers.Session(d))
	g.Post("/api/session/new", handlers.NewConversation(d))
	g.Post("/api/session/bind", handlers.Bind(d))
	g.Post("/api/session/retry", handlers.Retry(d))
	g.Post("/api/session/reembed", handlers.Reembed(d))

	r.With(limited(d)...).Post("/api/session/query", handlers.Query(d))
}
