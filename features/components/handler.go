package components

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"flowkit/internal/adapter/supabase"
	"flowkit/internal/component"
	"flowkit/internal/config"
	"flowkit/internal/middleware"
	"flowkit/internal/schema"
	"flowkit/internal/vectorstore"
	"flowkit/internal/worker"
)

type Registry interface {
	Catalog() []component.Schema
	Build(ctx context.Context, name string, params component.Params) (component.Output, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type Handler struct {
	registry Registry
	pub      TaskPublisher
}

func NewHandler(registry Registry, pub TaskPublisher) *Handler {
	return &Handler{registry: registry, pub: pub}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": h.registry.Catalog()})
}

type buildRequest struct {
	Params component.Params `json:"params"`
	Query  string           `json:"query"`
}

// BuildResult is the JSON form of a component output.
type BuildResult struct {
	Type      component.OutputKind `json:"type"`
	Text      *string              `json:"text,omitempty"`
	Record    *schema.Record       `json:"record,omitempty"`
	Documents []schema.Document    `json:"documents,omitempty"`
}

func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.registry.Build(r.Context(), name, req.Params)
	if err != nil {
		h.writeBuildError(r.Context(), w, err)
		return
	}

	res := BuildResult{Type: out.Kind}
	switch out.Kind {
	case component.OutputText:
		res.Text = &out.Text
	case component.OutputRecord:
		res.Record = out.Record
	case component.OutputRetriever:
		if req.Query != "" {
			docs, err := out.Retriever.Retrieve(r.Context(), req.Query)
			if err != nil {
				slog.ErrorContext(r.Context(), "retrieval failed", "component", name, "error", err)
				h.writeError(r.Context(), w, "UPSTREAM_ERROR", err.Error(), http.StatusBadGateway)
				return
			}
			res.Documents = docs
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": res})
}

// writeBuildError maps a build failure to a response. The registry has
// already logged it.
func (h *Handler) writeBuildError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, component.ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, component.ErrInvalidParams),
		errors.Is(err, vectorstore.ErrUnsupportedInput),
		errors.Is(err, supabase.ErrMissingURL),
		errors.Is(err, supabase.ErrMissingKey),
		errors.Is(err, supabase.ErrInvalidURL):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	default:
		h.writeError(ctx, w, "UPSTREAM_ERROR", err.Error(), http.StatusBadGateway)
	}
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.pub == nil {
		h.writeError(r.Context(), w, "UNAVAILABLE", "ingest queue is not configured", http.StatusServiceUnavailable)
		return
	}

	var payload worker.IngestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if len(payload.Records) == 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "records are required", http.StatusBadRequest)
		return
	}
	payload.CorrelationID = middleware.GetCorrelationID(r.Context())

	body, err := json.Marshal(payload)
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := h.pub.Publish(config.TopicVectorIngest, body); err != nil {
		slog.ErrorContext(r.Context(), "failed to publish ingest task", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]interface{}{"status": "queued", "count": len(payload.Records)},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
