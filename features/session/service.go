package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"labelflow/features/task"
	"labelflow/features/workforce"
	"labelflow/internal/csvimport"
	"labelflow/internal/draft"
	"labelflow/internal/fanout"
	"labelflow/internal/generation"
	"labelflow/internal/metrics"
	"labelflow/internal/template"
)

var ErrInvalidMode = errors.New("assignment mode must be repeat or broadcast")

type TemplateLoader interface {
	Load(ctx context.Context, id string) (*template.Template, error)
}

type WorkerFinder interface {
	Find(ctx context.Context, c workforce.Criteria) ([]workforce.Worker, error)
}

type Generator interface {
	GenerateForAll(ctx context.Context, req generation.Request, existing []draft.DraftTask) ([]draft.DraftTask, int, error)
}

type Committer interface {
	Commit(ctx context.Context, batchID string, plan *fanout.Plan) (*task.CommitResult, error)
}

// State is the externally visible view of a session.
type State struct {
	ID           string                 `json:"id"`
	TemplateID   string                 `json:"template_id"`
	TemplateName string                 `json:"template_name"`
	Placeholders []template.Placeholder `json:"placeholders"`
	Tasks        []draft.DraftTask      `json:"tasks"`
	Assignment   Assignment             `json:"assignment"`
	Generation   uint64                 `json:"generation"`
	ExpiresAt    string                 `json:"expires_at"`
}

type GenerateRequest struct {
	Prompt           string `json:"prompt"`
	TargetCount      int    `json:"target_count"`
	PlaceholderIndex int    `json:"placeholder_index"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
}

type GenerateResult struct {
	Applied int               `json:"applied"`
	Tasks   []draft.DraftTask `json:"tasks"`
}

type AssignmentRequest struct {
	Mode        string             `json:"mode"`
	RepeatCount *int               `json:"repeat_count"`
	Criteria    workforce.Criteria `json:"criteria"`
}

type CommitRequest struct {
	ProjectRef string `json:"project_ref"`
	Name       string `json:"name"`
	Timer      int    `json:"timer"`
	TaskType   string `json:"task_type"`
}

type CommitResult struct {
	task.CommitResult
	Cleared bool `json:"cleared"`
}

type Service struct {
	registry  *Registry
	templates TemplateLoader
	workers   WorkerFinder
	generator Generator
	committer Committer
}

func NewService(registry *Registry, templates TemplateLoader, workers WorkerFinder, generator Generator, committer Committer) *Service {
	return &Service{
		registry:  registry,
		templates: templates,
		workers:   workers,
		generator: generator,
		committer: committer,
	}
}

// Open loads the template and starts an empty session around it.
func (s *Service) Open(ctx context.Context, templateID string) (*State, error) {
	tmpl, err := s.templates.Load(ctx, templateID)
	if err != nil {
		return nil, err
	}
	sess := newSession(uuid.New().String(), tmpl)
	s.registry.add(sess)
	slog.InfoContext(ctx, "session opened", "session_id", sess.ID, "template_id", tmpl.ID, "placeholders", len(tmpl.Placeholders))
	return s.state(sess), nil
}

func (s *Service) State(ctx context.Context, id string) (*State, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return s.state(sess), nil
}

func (s *Service) Close(ctx context.Context, id string) error {
	if err := s.registry.Remove(id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "session closed", "session_id", id)
	return nil
}

func (s *Service) AddTask(ctx context.Context, id string) (draft.DraftTask, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return draft.DraftTask{}, err
	}
	return sess.Drafts.AddTask(), nil
}

func (s *Service) RemoveTask(ctx context.Context, id string, taskID int) error {
	sess, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return sess.Drafts.RemoveTask(taskID)
}

func (s *Service) SetValue(ctx context.Context, id string, taskID, index int, v template.Value) error {
	sess, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return sess.Drafts.SetValue(taskID, index, v)
}

func (s *Service) SetFileType(ctx context.Context, id string, taskID, index int, ft template.FileType) error {
	sess, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return sess.Drafts.SetFileType(taskID, index, ft)
}

// Preview renders the template filled with one draft task.
func (s *Service) Preview(ctx context.Context, id string, taskID int) (json.RawMessage, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	t, err := sess.Drafts.Task(taskID)
	if err != nil {
		return nil, err
	}
	filled := template.Fill(sess.Template.Nodes, t.Values, sess.Template.Placeholders)
	return template.Marshal(filled)
}

// ImportCSV replaces the drafts with one task per CSV data row. On any
// error the drafts are left as they were.
func (s *Service) ImportCSV(ctx context.Context, id string, r io.Reader) (int, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return 0, err
	}
	sess.op.Lock()
	defer sess.op.Unlock()

	n, err := s.importCSV(sess, r)
	metrics.CSVImportsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		slog.WarnContext(ctx, "csv import rejected", "session_id", id, "error", err)
		return 0, err
	}
	slog.InfoContext(ctx, "csv imported", "session_id", id, "tasks", n)
	return n, nil
}

func (s *Service) importCSV(sess *Session, r io.Reader) (int, error) {
	_, gen := sess.Drafts.Snapshot()
	rows, err := csvimport.ReadRows(r)
	if err != nil {
		return 0, err
	}
	tasks, err := csvimport.Import(rows, sess.Template.Placeholders)
	if err != nil {
		return 0, err
	}
	if sess.Closed() {
		return 0, ErrSessionClosed
	}
	if err := sess.Drafts.ReplaceIf(gen, tasks); err != nil {
		return 0, err
	}
	return len(tasks), nil
}

// Generate fills one placeholder across all drafts from a single model call.
// Results arriving after the session closed or the drafts changed are
// discarded.
func (s *Service) Generate(ctx context.Context, id string, req GenerateRequest) (*GenerateResult, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if req.PlaceholderIndex < 0 || req.PlaceholderIndex >= len(sess.Template.Placeholders) {
		return nil, fmt.Errorf("placeholder %d: %w", req.PlaceholderIndex, draft.ErrIndexOutOfRange)
	}

	sess.op.Lock()
	defer sess.op.Unlock()

	callCtx, cancel := sess.bind(ctx)
	defer cancel()

	existing, gen := sess.Drafts.Snapshot()
	tasks, applied, err := s.generator.GenerateForAll(callCtx, generation.Request{
		Prompt:      req.Prompt,
		TargetCount: req.TargetCount,
		Placeholder: sess.Template.Placeholders[req.PlaceholderIndex],
		SlotCount:   len(sess.Template.Placeholders),
		Provider:    req.Provider,
		Model:       req.Model,
		ContextID:   sess.ID,
	}, existing)
	if sess.Closed() {
		return nil, ErrSessionClosed
	}
	if err != nil {
		return nil, err
	}
	if applied == 0 {
		return &GenerateResult{Tasks: existing}, nil
	}
	if err := sess.Drafts.ReplaceIf(gen, tasks); err != nil {
		return nil, err
	}
	return &GenerateResult{Applied: applied, Tasks: sess.Drafts.Tasks()}, nil
}

// SetAssignment switches between repeat and broadcast mode. In broadcast
// mode the repeat count always equals the number of filtered workers and
// cannot be set by hand.
func (s *Service) SetAssignment(ctx context.Context, id string, req AssignmentRequest) (Assignment, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Assignment{}, err
	}

	switch strings.ToLower(req.Mode) {
	case ModeBroadcast:
		workers, err := s.workers.Find(ctx, req.Criteria)
		if err != nil {
			return Assignment{}, err
		}
		count := fanout.BroadcastRepeatCount(workers)
		if req.RepeatCount != nil && *req.RepeatCount != count {
			return Assignment{}, fanout.ErrRepeatCountLocked
		}
		a := Assignment{Mode: ModeBroadcast, RepeatCount: count, Criteria: req.Criteria, Workers: workers}
		sess.setAssignment(a)
		slog.InfoContext(ctx, "broadcast assignment set", "session_id", id, "workers", count)
		return sess.Assignment(), nil
	case ModeRepeat, "":
		count := sess.Assignment().RepeatCount
		if sess.Assignment().Mode != ModeRepeat {
			count = 1
		}
		if req.RepeatCount != nil {
			count = *req.RepeatCount
		}
		if count < 1 {
			return Assignment{}, fanout.ErrInvalidRepeatCount
		}
		sess.setAssignment(Assignment{Mode: ModeRepeat, RepeatCount: count})
		return sess.Assignment(), nil
	default:
		return Assignment{}, ErrInvalidMode
	}
}

// Commit expands the drafts into task records and hands them to the task
// service. Drafts are cleared only after the records were accepted.
func (s *Service) Commit(ctx context.Context, id string, req CommitRequest) (*CommitResult, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	sess.op.Lock()
	defer sess.op.Unlock()

	tasks, gen := sess.Drafts.Snapshot()
	a := sess.Assignment()
	name := req.Name
	if strings.TrimSpace(name) == "" {
		name = sess.Template.Name
	}
	plan, err := fanout.Build(tasks, sess.Template, fanout.Options{
		ProjectRef:  req.ProjectRef,
		Name:        name,
		Timer:       req.Timer,
		TaskType:    req.TaskType,
		RepeatCount: a.RepeatCount,
		Broadcast:   a.Mode == ModeBroadcast,
		Workers:     a.Workers,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.committer.Commit(ctx, BatchID(sess.ID, gen), plan)
	if err != nil {
		return nil, err
	}
	cleared := sess.Drafts.ClearIf(gen)
	if !cleared {
		slog.WarnContext(ctx, "drafts changed during commit, keeping them", "session_id", id)
	}
	return &CommitResult{CommitResult: *res, Cleared: cleared}, nil
}

// BatchID derives a stable batch id from the session and draft generation,
// so retrying an unchanged commit reuses it.
func BatchID(sessionID string, generation uint64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", sessionID, generation))).String()
}

func (s *Service) state(sess *Session) *State {
	tasks, gen := sess.Drafts.Snapshot()
	return &State{
		ID:           sess.ID,
		TemplateID:   sess.Template.ID,
		TemplateName: sess.Template.Name,
		Placeholders: sess.Template.Placeholders,
		Tasks:        tasks,
		Assignment:   sess.Assignment(),
		Generation:   gen,
		ExpiresAt:    s.registry.ExpiresAt(sess).UTC().Format(time.RFC3339),
	}
}
