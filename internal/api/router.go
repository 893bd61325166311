package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/headless/internal/docservice"
	"github.com/starford/headless/internal/hn"
)

// Options configures the API router.
type Options struct {
	Access AccessPolicy
	// MaxAge is sent in Cache-Control on content graph responses.
	MaxAge time.Duration
	// Events, if non-nil, is mounted at GET /events for authenticated callers.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(graph *hn.Service, docs *docservice.Service, opts Options) chi.Router {
	h := NewHandler(graph, docs, opts.MaxAge)

	r := chi.NewRouter()
	r.Use(AccountMiddleware(opts.Access))

	r.Get("/content-graph", h.ContentGraph)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuthenticated)

		r.Get("/documents", h.ListDocuments)
		r.Post("/documents", h.CreateDocument)
		r.Post("/documents/move", h.MoveDocument)
		r.Get("/documents/*", h.GetDocument)
		r.Put("/documents/*", h.PutDocument)
		r.Delete("/documents/*", h.DeleteDocument)

		r.Get("/search", h.Search)

		if opts.Events != nil {
			r.Get("/events", opts.Events.ServeHTTP)
		}
	})

	return r
}
