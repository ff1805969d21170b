package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates the ops API router. The webhook endpoint is mounted
// separately by the caller; everything here sits behind the bearer-token
// middleware when auth is enabled. sseHandler, if non-nil, is mounted at
// GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/catalog", h.ListCatalog)
	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
