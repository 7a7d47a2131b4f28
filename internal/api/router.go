package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veleth/ansuz/internal/history"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(runner Runner, ledger *history.DB, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(runner, ledger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Synchronization.
	r.Post("/sync", h.Sync)

	// Card preview.
	r.Post("/extract", h.Extract)

	// Run history.
	r.Get("/runs", h.Runs)

	// SSE progress feed (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
