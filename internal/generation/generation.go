package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"labelflow/internal/audit"
	"labelflow/internal/draft"
	"labelflow/internal/metrics"
	"labelflow/internal/middleware"
	"labelflow/internal/settings"
	"labelflow/internal/template"
	"labelflow/internal/text"
)

var (
	ErrEmptyPrompt            = errors.New("prompt is required")
	ErrInvalidTarget          = errors.New("target count must be at least 1")
	ErrUnsupportedPlaceholder = errors.New("carousel placeholders cannot be generated")
	ErrEmptyResponse          = errors.New("model returned an empty response")
	ErrMissingAPIKey          = errors.New("no api key configured for provider")
	ErrUnknownProvider        = errors.New("unknown completion provider")
)

// Error reports a failed or empty model call. Draft tasks are left untouched.
type Error struct {
	Provider string
	Model    string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ai generation via %s/%s: %v", e.Provider, e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CompletionRequest is a single, non-streaming text completion.
type CompletionRequest struct {
	Provider  string
	Model     string
	Prompt    string
	ContextID string
	APIKey    string
}

type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type AuditLogger interface {
	Log(entry audit.GenerationEntry)
}

type Request struct {
	Prompt      string
	TargetCount int
	Placeholder template.Placeholder
	// SlotCount sizes the value arena of appended tasks.
	SlotCount int
	Provider  string
	Model     string
	ContextID string
}

// BuildPrompt wraps the operator prompt in an instruction demanding a
// strictly numbered list of n items.
func BuildPrompt(prompt string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d items for the following request.\n", n)
	b.WriteString("Respond with a numbered list only, one item per line, formatted as \"1. item\", \"2. item\" and so on.\n")
	b.WriteString("Do not add a title, explanations, blank items or any text before or after the list.\n\n")
	b.WriteString("Request: ")
	b.WriteString(strings.TrimSpace(prompt))
	return b.String()
}

type Service struct {
	completer       Completer
	settings        SettingsProvider
	audit           AuditLogger
	defaultProvider string
	defaultModel    string
	now             func() time.Time
}

func NewService(completer Completer, settings SettingsProvider, audit AuditLogger, defaultProvider, defaultModel string) *Service {
	return &Service{
		completer:       completer,
		settings:        settings,
		audit:           audit,
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
		now:             time.Now,
	}
}

// GenerateForAll makes one model call and spreads the parsed items over
// existing. Item i updates existing[i] at the target placeholder; items past
// the end become new tasks (ID 0) holding only that placeholder. Fewer items
// than requested is not an error. The returned count is the number of items
// applied. existing is not modified.
func (s *Service) GenerateForAll(ctx context.Context, req Request, existing []draft.DraftTask) ([]draft.DraftTask, int, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, 0, ErrEmptyPrompt
	}
	if req.TargetCount < 1 {
		return nil, 0, ErrInvalidTarget
	}
	if req.Placeholder.Type == template.TypeCarousel {
		return nil, 0, ErrUnsupportedPlaceholder
	}

	call, err := s.resolve(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	start := s.now()
	resp, err := s.completer.Complete(ctx, call)
	elapsed := s.now().Sub(start)
	metrics.GenerationDuration.WithLabelValues(call.Provider).Observe(elapsed.Seconds())

	if err == nil && strings.TrimSpace(resp) == "" {
		err = ErrEmptyResponse
	}
	var items []string
	if err == nil {
		items = text.ParseNumberedList(text.CleanModelResponse(resp), req.TargetCount)
	}
	s.record(ctx, call, req, len(items), elapsed, err)
	if err != nil {
		slog.WarnContext(ctx, "bulk generation failed", "provider", call.Provider, "model", call.Model, "error", err)
		return nil, 0, &Error{Provider: call.Provider, Model: call.Model, Err: err}
	}
	if len(items) < req.TargetCount {
		slog.InfoContext(ctx, "model returned fewer items than requested", "requested", req.TargetCount, "matched", len(items))
	}

	return Distribute(existing, req.Placeholder.Index, req.SlotCount, items), len(items), nil
}

// Distribute applies items to tasks in order. See GenerateForAll.
func Distribute(existing []draft.DraftTask, index, slots int, items []string) []draft.DraftTask {
	if slots <= index {
		slots = index + 1
	}
	out := make([]draft.DraftTask, 0, max(len(existing), len(items)))
	for _, t := range existing {
		out = append(out, draft.DraftTask{ID: t.ID, Values: t.Values.Clone()})
	}
	for i, item := range items {
		if i < len(out) {
			t := &out[i]
			if index >= len(t.Values) {
				grown := template.NewValues(index + 1)
				copy(grown, t.Values)
				t.Values = grown
			}
			v := &template.Value{Content: item}
			if prev := t.Values[index]; prev != nil {
				v.FileType = prev.FileType
			}
			t.Values[index] = v
			continue
		}
		values := template.NewValues(slots)
		values[index] = &template.Value{Content: item}
		out = append(out, draft.DraftTask{Values: values})
	}
	return out
}

func (s *Service) resolve(ctx context.Context, req Request) (CompletionRequest, error) {
	call := CompletionRequest{
		Provider:  req.Provider,
		Model:     req.Model,
		Prompt:    BuildPrompt(req.Prompt, req.TargetCount),
		ContextID: req.ContextID,
	}

	set, err := s.settings.Get(ctx)
	if err != nil {
		if call.Provider == "" {
			call.Provider = s.defaultProvider
		}
		return call, &Error{Provider: strings.ToLower(call.Provider), Model: call.Model, Err: fmt.Errorf("failed to get settings: %w", err)}
	}
	if call.Provider == "" {
		call.Provider = set.DefaultProvider
	}
	if call.Provider == "" {
		call.Provider = s.defaultProvider
	}
	if call.Model == "" && strings.EqualFold(call.Provider, set.DefaultProvider) {
		call.Model = set.DefaultModel
	}
	if call.Model == "" && strings.EqualFold(call.Provider, s.defaultProvider) {
		call.Model = s.defaultModel
	}
	call.Provider = strings.ToLower(call.Provider)
	call.APIKey = set.APIKey(call.Provider)
	if call.APIKey == "" {
		return call, &Error{Provider: call.Provider, Model: call.Model, Err: ErrMissingAPIKey}
	}
	return call, nil
}

func (s *Service) record(ctx context.Context, call CompletionRequest, req Request, matched int, elapsed time.Duration, err error) {
	metrics.GenerationsTotal.WithLabelValues(call.Provider, metrics.Outcome(err)).Inc()
	if s.audit == nil {
		return
	}
	entry := audit.GenerationEntry{
		SessionID:     req.ContextID,
		Provider:      call.Provider,
		Model:         call.Model,
		PromptLength:  len(req.Prompt),
		Target:        req.TargetCount,
		Matched:       matched,
		Duration:      elapsed,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.audit.Log(entry)
}
