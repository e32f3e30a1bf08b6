package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"flowkit/internal/component"
	"flowkit/internal/middleware"
)

type MessageRepo interface {
	Count(ctx context.Context) (int, error)
	CountSessions(ctx context.Context) (int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type Catalog interface {
	Catalog() []component.Schema
}

type Handler struct {
	messages MessageRepo
	jobs     JobRepo
	catalog  Catalog
}

func NewHandler(m MessageRepo, j JobRepo, c Catalog) *Handler {
	return &Handler{messages: m, jobs: j, catalog: c}
}

type StatsResponse struct {
	Components int `json:"components"`
	Sessions   int `json:"sessions"`
	Messages   int `json:"messages"`
	FailedJobs int `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mCount, err := h.messages.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count messages", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count messages", http.StatusInternalServerError)
		return
	}

	sCount, err := h.messages.CountSessions(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count sessions", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count sessions", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobs.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Components: len(h.catalog.Catalog()),
		Sessions:   sCount,
		Messages:   mCount,
		FailedJobs: jCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
