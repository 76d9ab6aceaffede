package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"labelflow/internal/audit"
	"labelflow/internal/draft"
	"labelflow/internal/settings"
	"labelflow/internal/template"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type stubSettings struct {
	set *settings.Settings
	err error
}

func (s *stubSettings) Get(ctx context.Context) (*settings.Settings, error) {
	return s.set, s.err
}

type captureAudit struct {
	entries []audit.GenerationEntry
}

func (c *captureAudit) Log(e audit.GenerationEntry) {
	c.entries = append(c.entries, e)
}

var answerPlaceholder = template.Placeholder{Type: template.TypeText, Index: 1, Name: "Answer"}

func existingTasks() []draft.DraftTask {
	return []draft.DraftTask{
		{ID: 1, Values: template.Values{{Content: "a"}, nil}},
		{ID: 2, Values: template.Values{{Content: "b"}, {Content: "old", FileType: template.FileImage}}},
		{ID: 3, Values: template.Values{nil, nil}},
	}
}

func newTestService(c Completer, a AuditLogger) *Service {
	return NewService(c, &stubSettings{set: &settings.Settings{
		DefaultProvider: "gemini",
		DefaultModel:    "gemini-1.5-flash",
		GeminiAPIKey:    "g-key",
		OpenAIAPIKey:    "o-key",
	}}, a, "gemini", "gemini-1.5-flash")
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("  capital cities  ", 7)
	assert.Contains(t, p, "exactly 7 items")
	assert.Contains(t, p, "\"1. item\"")
	assert.True(t, strings.HasSuffix(p, "Request: capital cities"))
}

func TestGenerateForAll_DistributesAndAppends(t *testing.T) {
	c := new(MockCompleter)
	a := &captureAudit{}
	c.On("Complete", mock.Anything, mock.MatchedBy(func(r CompletionRequest) bool {
		return r.Provider == "gemini" && r.Model == "gemini-1.5-flash" && r.APIKey == "g-key" && r.ContextID == "sess-1"
	})).Return("Sure!\n1. one\n2. two\n3. three\n4. four\n5. five\n6. six\n", nil)

	existing := existingTasks()
	out, applied, err := newTestService(c, a).GenerateForAll(context.Background(), Request{
		Prompt:      "numbers",
		TargetCount: 5,
		Placeholder: answerPlaceholder,
		SlotCount:   2,
		ContextID:   "sess-1",
	}, existing)
	require.NoError(t, err)

	assert.Equal(t, 5, applied)
	require.Len(t, out, 5)
	assert.Equal(t, []int{1, 2, 3, 0, 0}, []int{out[0].ID, out[1].ID, out[2].ID, out[3].ID, out[4].ID})
	assert.Equal(t, "one", out[0].Values[1].Content)
	assert.Equal(t, "a", out[0].Values[0].Content)
	assert.Equal(t, "two", out[1].Values[1].Content)
	assert.Equal(t, template.FileImage, out[1].Values[1].FileType)
	assert.Equal(t, "five", out[4].Values[1].Content)
	assert.Nil(t, out[4].Values[0])
	assert.Len(t, out[4].Values, 2)

	assert.Nil(t, existing[0].Values[1], "input tasks are not modified")

	require.Len(t, a.entries, 1)
	assert.Equal(t, 5, a.entries[0].Matched)
	assert.Equal(t, "sess-1", a.entries[0].SessionID)
}

func TestGenerateForAll_FewerMatches(t *testing.T) {
	c := new(MockCompleter)
	c.On("Complete", mock.Anything, mock.Anything).Return("1. only one\nsome prose", nil)

	out, applied, err := newTestService(c, nil).GenerateForAll(context.Background(), Request{
		Prompt: "x", TargetCount: 4, Placeholder: answerPlaceholder, SlotCount: 2,
	}, existingTasks())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Len(t, out, 3)
	assert.Equal(t, "only one", out[0].Values[1].Content)
	assert.Nil(t, out[2].Values[1])
}

func TestGenerateForAll_Failures(t *testing.T) {
	t.Run("Call Error", func(t *testing.T) {
		c := new(MockCompleter)
		c.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

		out, _, err := newTestService(c, nil).GenerateForAll(context.Background(), Request{
			Prompt: "x", TargetCount: 2, Placeholder: answerPlaceholder,
		}, existingTasks())
		assert.Nil(t, out)
		var genErr *Error
		require.True(t, errors.As(err, &genErr))
		assert.Equal(t, "gemini", genErr.Provider)
	})

	t.Run("Blank Response", func(t *testing.T) {
		c := new(MockCompleter)
		c.On("Complete", mock.Anything, mock.Anything).Return("  \n ", nil)

		_, _, err := newTestService(c, nil).GenerateForAll(context.Background(), Request{
			Prompt: "x", TargetCount: 2, Placeholder: answerPlaceholder,
		}, nil)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("Missing Key", func(t *testing.T) {
		c := new(MockCompleter)
		_, _, err := newTestService(c, nil).GenerateForAll(context.Background(), Request{
			Prompt: "x", TargetCount: 2, Placeholder: answerPlaceholder, Provider: "cohere",
		}, nil)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
		c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	})

	t.Run("Settings Unavailable", func(t *testing.T) {
		c := new(MockCompleter)
		svc := NewService(c, &stubSettings{err: errors.New("db down")}, nil, "gemini", "gemini-1.5-flash")
		_, _, err := svc.GenerateForAll(context.Background(), Request{
			Prompt: "x", TargetCount: 2, Placeholder: answerPlaceholder,
		}, nil)
		var genErr *Error
		require.True(t, errors.As(err, &genErr))
		assert.Equal(t, "gemini", genErr.Provider)
		assert.Contains(t, err.Error(), "db down")
		c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	})

	t.Run("Validation", func(t *testing.T) {
		svc := newTestService(new(MockCompleter), nil)
		_, _, err := svc.GenerateForAll(context.Background(), Request{TargetCount: 1}, nil)
		assert.ErrorIs(t, err, ErrEmptyPrompt)
		_, _, err = svc.GenerateForAll(context.Background(), Request{Prompt: "x"}, nil)
		assert.ErrorIs(t, err, ErrInvalidTarget)
		_, _, err = svc.GenerateForAll(context.Background(), Request{
			Prompt: "x", TargetCount: 1, Placeholder: template.Placeholder{Type: template.TypeCarousel},
		}, nil)
		assert.ErrorIs(t, err, ErrUnsupportedPlaceholder)
	})
}

func TestGenerateForAll_ProviderOverride(t *testing.T) {
	c := new(MockCompleter)
	c.On("Complete", mock.Anything, mock.MatchedBy(func(r CompletionRequest) bool {
		return r.Provider == "openai" && r.Model == "gpt-4o-mini" && r.APIKey == "o-key"
	})).Return("1. x", nil)

	_, applied, err := newTestService(c, nil).GenerateForAll(context.Background(), Request{
		Prompt: "x", TargetCount: 1, Placeholder: answerPlaceholder, Provider: "OpenAI", Model: "gpt-4o-mini",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	c.AssertExpectations(t)
}

func TestRouter(t *testing.T) {
	gem := new(MockCompleter)
	gem.On("Complete", mock.Anything, mock.Anything).Return("1. g", nil)
	r := NewRouter().Register("Gemini", gem)

	out, err := r.Complete(context.Background(), CompletionRequest{Provider: "gemini"})
	require.NoError(t, err)
	assert.Equal(t, "1. g", out)

	_, err = r.Complete(context.Background(), CompletionRequest{Provider: "mistral"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
