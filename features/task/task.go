package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"labelflow/features/workforce"
	"labelflow/internal/config"
	"labelflow/internal/fanout"
	"labelflow/internal/metrics"
	"labelflow/internal/middleware"
)

const (
	ModeRepeat    = "repeat"
	ModeBroadcast = "broadcast"
)

// Task is a persisted, concrete labeling task.
type Task struct {
	ID               string          `json:"id"`
	BatchID          string          `json:"batch_id"`
	Seq              int             `json:"seq"`
	TemplateID       string          `json:"template_id"`
	ProjectRef       string          `json:"project_ref"`
	Name             string          `json:"name"`
	Content          json.RawMessage `json:"content"`
	Timer            int             `json:"timer"`
	Reviewer         string          `json:"reviewer"`
	Type             string          `json:"type"`
	WorkerAssignment *string         `json:"worker_assignment"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AssignmentMessage is published once per broadcast record.
type AssignmentMessage struct {
	BatchID       string             `json:"batch_id"`
	Seq           int                `json:"seq"`
	Template      fanout.Record      `json:"template"`
	Workers       []workforce.Worker `json:"workers"`
	CorrelationID string             `json:"correlation_id,omitempty"`
}

// PersistenceError reports a commit that could not be stored or handed off.
// Draft tasks must be retained so the operator can retry.
type PersistenceError struct {
	BatchID string
	Mode    string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("commit %s (%s mode): %v", e.BatchID, e.Mode, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CommitResult summarizes a successful commit.
type CommitResult struct {
	BatchID string `json:"batch_id"`
	Mode    string `json:"mode"`
	Records int    `json:"records"`
}

type Repository interface {
	InsertBatch(ctx context.Context, batchID string, records []fanout.Record) (int, error)
	List(ctx context.Context, templateID string) ([]Task, error)
	Count(ctx context.Context) (int, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo Repository
	pub  EventPublisher
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub}
}

// Commit stores a repeat-mode plan in one transaction, or publishes every
// broadcast record for asynchronous expansion. Re-committing the same batch
// is idempotent.
func (s *Service) Commit(ctx context.Context, batchID string, plan *fanout.Plan) (*CommitResult, error) {
	mode := ModeRepeat
	if len(plan.Broadcasts) > 0 {
		mode = ModeBroadcast
	}

	var err error
	if mode == ModeBroadcast {
		err = s.publish(ctx, batchID, plan.Broadcasts)
	} else {
		_, err = s.repo.InsertBatch(ctx, batchID, plan.Singles)
	}
	metrics.CommitsTotal.WithLabelValues(mode, metrics.Outcome(err)).Inc()
	if err != nil {
		slog.ErrorContext(ctx, "commit failed", "batch_id", batchID, "mode", mode, "error", err)
		return nil, &PersistenceError{BatchID: batchID, Mode: mode, Err: err}
	}

	metrics.RecordsPlanned.WithLabelValues(mode).Add(float64(plan.Size()))
	slog.InfoContext(ctx, "commit stored", "batch_id", batchID, "mode", mode, "records", plan.Size())
	return &CommitResult{BatchID: batchID, Mode: mode, Records: plan.Size()}, nil
}

func (s *Service) publish(ctx context.Context, batchID string, broadcasts []fanout.Broadcast) error {
	for _, b := range broadcasts {
		body, err := json.Marshal(AssignmentMessage{
			BatchID:       batchID,
			Seq:           b.Template.Seq,
			Template:      b.Template,
			Workers:       b.Workers,
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
		if err != nil {
			return fmt.Errorf("encode assignment: %w", err)
		}
		if err := s.pub.Publish(config.TopicTaskAssign, body); err != nil {
			return fmt.Errorf("publish assignment %d: %w", b.Template.Seq, err)
		}
	}
	slog.DebugContext(ctx, "assignments published", "batch_id", batchID, "count", len(broadcasts))
	return nil
}

// InsertAssignments expands a broadcast record into one task per worker.
// Redelivered messages insert nothing new.
func (s *Service) InsertAssignments(ctx context.Context, msg AssignmentMessage) (int, error) {
	records := Expand(msg)
	n, err := s.repo.InsertBatch(ctx, msg.BatchID, records)
	if err != nil {
		return 0, err
	}
	metrics.AssignmentsExpanded.Add(float64(n))
	return n, nil
}

// Expand copies the template record once per worker with the worker id set.
func Expand(msg AssignmentMessage) []fanout.Record {
	out := make([]fanout.Record, 0, len(msg.Workers))
	for _, w := range msg.Workers {
		rec := msg.Template
		rec.Seq = msg.Seq
		id := w.ID
		rec.WorkerAssignment = &id
		out = append(out, rec)
	}
	return out
}

func (s *Service) List(ctx context.Context, templateID string) ([]Task, error) {
	return s.repo.List(ctx, templateID)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
