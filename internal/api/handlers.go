package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/veleth/ansuz/internal/apperr"
	"github.com/veleth/ansuz/internal/history"
	"github.com/veleth/ansuz/internal/models"
	"github.com/veleth/ansuz/internal/reconcile"
	"github.com/veleth/ansuz/internal/source"
)

// Runner triggers a full synchronization pass and card preview; the
// pipeline implements it.
type Runner interface {
	Run(ctx context.Context) (reconcile.Report, error)
	ExtractPreview(doc source.Source) []models.Card
}

// Handler holds API route handlers.
type Handler struct {
	runner Runner
	ledger *history.DB // may be nil when history is disabled
}

// NewHandler creates a new Handler.
func NewHandler(runner Runner, ledger *history.DB) *Handler {
	return &Handler{runner: runner, ledger: ledger}
}

// Sync handles POST /api/sync: runs the full pipeline and returns the
// report. Only an unreachable store produces a non-200 response; partial
// failures are inside the report.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.Run(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrUnreachable) {
			writeJSON(w, http.StatusBadGateway, errorBody("flashcard store unreachable; is Anki running with AnkiConnect?"))
			return
		}
		slog.Error("sync failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Extract handles POST /api/extract: previews the cards a piece of text
// would produce, without any remote calls.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	if req.Name == "" {
		req.Name = "untitled"
	}
	items := h.runner.ExtractPreview(source.InlineSource{Name: req.Name, Content: req.Content})
	if items == nil {
		items = []models.Card{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cards": items,
		"total": len(items),
	})
}

// Runs handles GET /api/runs: lists recent synchronization runs.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []history.Run{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.ledger.ListRuns(limit)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
