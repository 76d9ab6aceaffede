package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"labelflow/features/task"
	"labelflow/internal/csvimport"
	"labelflow/internal/draft"
	"labelflow/internal/fanout"
	"labelflow/internal/generation"
	"labelflow/internal/middleware"
	"labelflow/internal/template"
)

type Handler struct {
	service    *Service
	maxCSVSize int64
}

// NewHandler builds the session handler. maxCSVSize caps import bodies in bytes.
func NewHandler(service *Service, maxCSVSize int64) *Handler {
	return &Handler{service: service, maxCSVSize: maxCSVSize}
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TemplateID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "template_id is required", http.StatusBadRequest)
		return
	}
	state, err := h.service.Open(r.Context(), req.TemplateID)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	h.writeData(r.Context(), w, http.StatusCreated, state)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	h.writeData(r.Context(), w, http.StatusOK, state)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Close(r.Context(), r.PathValue("id")); err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.AddTask(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	h.writeData(r.Context(), w, http.StatusCreated, t)
}

func (h *Handler) RemoveTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.intPath(w, r, "taskID")
	if !ok {
		return
	}
	if err := h.service.RemoveTask(r.Context(), r.PathValue("id"), taskID); err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetValue(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.intPath(w, r, "taskID")
	if !ok {
		return
	}
	index, ok := h.intPath(w, r, "index")
	if !ok {
		return
	}
	var v template.Value
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.SetValue(r.Context(), r.PathValue("id"), taskID, index, v); err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetFileType(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.intPath(w, r, "taskID")
	if !ok {
		return
	}
	index, ok := h.intPath(w, r, "index")
	if !ok {
		return
	}
	var req struct {
		FileType string `json:"file_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	ft, err := template.ParseFileType(req.FileType)
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.SetFileType(r.Context(), r.PathValue("id"), taskID, index, ft); err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.intPath(w, r, "taskID")
	if !ok {
		return
	}
	doc, err := h.service.Preview(r.Context(), r.PathValue("id"), taskID)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	h.writeData(r.Context(), w, http.StatusOK, doc)
}

func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxCSVSize)
	n, err := h.service.ImportCSV(r.Context(), r.PathValue("id"), body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(r.Context(), w, "FILE_TOO_LARGE", "CSV exceeds the upload limit", http.StatusRequestEntityTooLarge)
			return
		}
		h.fail(r.Context(), w, err)
		return
	}
	h.writeData(r.Context(), w, http.StatusOK, map[string]int{"imported": n})
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.service.Generate(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	h.writeData(r.Context(), w, http.StatusOK, res)
}

func (h *Handler) SetAssignment(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	a, err := h.service.SetAssignment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	h.writeData(r.Context(), w, http.StatusOK, a)
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.service.Commit(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	h.writeData(r.Context(), w, http.StatusCreated, res)
}

func (h *Handler) intPath(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// fail maps domain errors onto HTTP statuses.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		parseErr    *template.ParseError
		readErr     *csvimport.ReadError
		mismatchErr *csvimport.ColumnMismatchError
		genErr      *generation.Error
		persistErr  *task.PersistenceError
	)
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, sql.ErrNoRows):
		h.writeError(ctx, w, "NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, draft.ErrTaskNotFound):
		h.writeError(ctx, w, "NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrSessionClosed), errors.Is(err, draft.ErrStale):
		h.writeError(ctx, w, "CONFLICT", err.Error(), http.StatusConflict)
	case errors.As(err, &mismatchErr):
		h.writeError(ctx, w, "COLUMN_MISMATCH", err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &readErr):
		h.writeError(ctx, w, "CSV_READ_ERROR", err.Error(), http.StatusBadRequest)
	case errors.As(err, &parseErr):
		h.writeError(ctx, w, "TEMPLATE_PARSE_ERROR", err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, generation.ErrEmptyPrompt), errors.Is(err, generation.ErrInvalidTarget),
		errors.Is(err, generation.ErrUnsupportedPlaceholder), errors.Is(err, draft.ErrIndexOutOfRange),
		errors.Is(err, fanout.ErrInvalidRepeatCount), errors.Is(err, fanout.ErrNoDraftTasks),
		errors.Is(err, fanout.ErrNoWorkers), errors.Is(err, fanout.ErrRepeatCountLocked),
		errors.Is(err, ErrInvalidMode), errors.Is(err, template.ErrUnknownFileType),
		errors.Is(err, template.ErrEmptyCarousel):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, generation.ErrMissingAPIKey), errors.Is(err, generation.ErrUnknownProvider):
		h.writeError(ctx, w, "PROVIDER_NOT_CONFIGURED", err.Error(), http.StatusBadRequest)
	case errors.As(err, &genErr):
		h.writeError(ctx, w, "AI_GENERATION_ERROR", err.Error(), http.StatusBadGateway)
	case errors.As(err, &persistErr):
		h.writeError(ctx, w, "PERSISTENCE_ERROR", err.Error(), http.StatusServiceUnavailable)
	default:
		slog.ErrorContext(ctx, "session request failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeData(ctx context.Context, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
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
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
