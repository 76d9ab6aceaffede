package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"labelflow/internal/middleware"
	"labelflow/internal/template"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string          `json:"name"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Content) == 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "content is required", http.StatusBadRequest)
		return
	}

	rec, err := h.service.Create(r.Context(), req.Name, req.Content)
	if err != nil {
		var perr *template.ParseError
		switch {
		case errors.As(err, &perr):
			h.writeError(r.Context(), w, "TEMPLATE_PARSE_ERROR", perr.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, ErrNameEmpty):
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrDuplicate):
			h.writeError(r.Context(), w, "CONFLICT", err.Error(), http.StatusConflict)
		default:
			slog.ErrorContext(r.Context(), "failed to create template", "error", err)
			h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": rec}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": records,
		"meta": map[string]int{"count": len(records)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeLookupError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": rec}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Placeholders(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.service.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeLookupError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": tmpl.Placeholders,
		"meta": map[string]int{"count": len(tmpl.Placeholders)},
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeLookupError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		h.writeError(ctx, w, "NOT_FOUND", "Template not found", http.StatusNotFound)
		return
	}
	slog.ErrorContext(ctx, "failed to load template", "error", err)
	h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
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
