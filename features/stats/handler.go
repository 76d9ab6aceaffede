package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"labelflow/internal/middleware"
)

type Counter interface {
	Count(ctx context.Context) (int, error)
}

type SessionRegistry interface {
	Len() int
}

type Handler struct {
	templates Counter
	tasks     Counter
	workers   Counter
	jobs      Counter
	sessions  SessionRegistry
}

func NewHandler(templates, tasks, workers, jobs Counter, sessions SessionRegistry) *Handler {
	return &Handler{templates: templates, tasks: tasks, workers: workers, jobs: jobs, sessions: sessions}
}

type StatsResponse struct {
	Templates    int `json:"templates"`
	Tasks        int `json:"tasks"`
	Workers      int `json:"workers"`
	FailedJobs   int `json:"failed_jobs"`
	OpenSessions int `json:"open_sessions"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	var resp StatsResponse
	counts := []struct {
		name string
		src  Counter
		dst  *int
	}{
		{"templates", h.templates, &resp.Templates},
		{"tasks", h.tasks, &resp.Tasks},
		{"workers", h.workers, &resp.Workers},
		{"jobs", h.jobs, &resp.FailedJobs},
	}
	for _, c := range counts {
		n, err := c.src.Count(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count "+c.name, "error", err, "correlationId", correlationID)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count "+c.name, http.StatusInternalServerError)
			return
		}
		*c.dst = n
	}
	resp.OpenSessions = h.sessions.Len()

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
