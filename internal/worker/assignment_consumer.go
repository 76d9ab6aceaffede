package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"labelflow/features/job"
	"labelflow/features/task"
	"labelflow/internal/config"
	"labelflow/internal/middleware"
)

const handlerName = "assignment-worker"

type AssignmentStore interface {
	InsertAssignments(ctx context.Context, msg task.AssignmentMessage) (int, error)
}

type FailedJobSaver interface {
	Save(ctx context.Context, j *job.Job) error
}

// AssignmentConsumer turns broadcast template records from task.assign into
// one concrete task per worker.
type AssignmentConsumer struct {
	store       AssignmentStore
	jobs        FailedJobSaver
	maxAttempts uint16
}

func NewAssignmentConsumer(store AssignmentStore, jobs FailedJobSaver, maxAttempts uint16) *AssignmentConsumer {
	return &AssignmentConsumer{store: store, jobs: jobs, maxAttempts: maxAttempts}
}

func (h *AssignmentConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var msg task.AssignmentMessage
	if err := json.Unmarshal(m.Body, &msg); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	correlationID := msg.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if msg.BatchID == "" || len(msg.Workers) == 0 {
		slog.ErrorContext(ctx, "missing required fields, dropping", "batch_id", msg.BatchID, "workers", len(msg.Workers))
		return nil
	}

	n, err := h.store.InsertAssignments(ctx, msg)
	if err != nil {
		if h.maxAttempts > 0 && m.Attempts >= h.maxAttempts {
			h.saveFailed(ctx, m, msg, err)
			return nil
		}
		slog.WarnContext(ctx, "assignment insert failed, requeueing", "batch_id", msg.BatchID, "seq", msg.Seq, "attempt", m.Attempts, "error", err)
		return err
	}

	slog.InfoContext(ctx, "assignments created", "batch_id", msg.BatchID, "seq", msg.Seq, "inserted", n, "workers", len(msg.Workers))
	return nil
}

func (h *AssignmentConsumer) saveFailed(ctx context.Context, m *nsq.Message, msg task.AssignmentMessage, cause error) {
	failed := &job.Job{
		BatchID: msg.BatchID,
		Handler: handlerName,
		Topic:   config.TopicTaskAssign,
		Payload: m.Body,
		Error:   cause.Error(),
		Retries: int(m.Attempts),
	}
	if err := h.jobs.Save(ctx, failed); err != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "error", err, "batch_id", msg.BatchID)
		return
	}
	slog.InfoContext(ctx, "saved failed job for retry", "job_id", failed.ID, "batch_id", msg.BatchID)
}
