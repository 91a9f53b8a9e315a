package archive

import (
	"encoding/json"
	"net/http"
	"strconv"

	"hookrelay/pkg/errors"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// Handler serves read access to archived delivery outcomes, so permanently
// failed webhooks can be inspected without a Mongo shell.
type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /archive", h.handleRecent)
	mux.HandleFunc("GET /archive/{webhook_id}", h.handleLookup)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	webhookID := r.PathValue("webhook_id")

	record, err := h.repo.FindByWebhookID(r.Context(), webhookID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errors.ToErrorResponse(errors.ErrInternal.WithCause(err)))
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, errors.ToErrorResponse(errors.ErrNotFound.WithMessage("webhook not archived")))
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeJSON(w, http.StatusBadRequest, errors.ToErrorResponse(errors.ErrClientInput.WithMessage("source parameter is required")))
		return
	}

	limit := int64(defaultRecentLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, errors.ToErrorResponse(errors.ErrClientInput.WithMessage("limit must be a positive integer")))
			return
		}
		limit = parsed
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	records, err := h.repo.RecentBySource(r.Context(), source, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errors.ToErrorResponse(errors.ErrInternal.WithCause(err)))
		return
	}
	if records == nil {
		records = []Record{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":  source,
		"records": records,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
