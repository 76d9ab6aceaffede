package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"labelflow/internal/generation"
)

// Generator produces text completions through Gemini. The underlying client
// is rebuilt whenever the request carries a different API key.
type Generator struct {
	defaultModel string
	client       *genai.Client
	currentKey   string
	mu           sync.RWMutex
	clientOpts   []option.ClientOption
}

func NewGenerator(defaultModel string, opts ...option.ClientOption) *Generator {
	return &Generator{
		defaultModel: defaultModel,
		clientOpts:   opts,
	}
}

func (g *Generator) Complete(ctx context.Context, req generation.CompletionRequest) (string, error) {
	if req.APIKey == "" {
		return "", fmt.Errorf("gemini api key not configured")
	}

	client, err := g.getClient(ctx, req.APIKey)
	if err != nil {
		return "", err
	}

	modelName := req.Model
	if modelName == "" {
		modelName = g.defaultModel
	}
	slog.DebugContext(ctx, "generating content", "model", modelName, "context_id", req.ContextID, "length", len(req.Prompt))

	model := client.GenerativeModel(modelName)
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func (g *Generator) getClient(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.RLock()
	if g.client != nil && g.currentKey == key {
		defer g.mu.RUnlock()
		return g.client, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.currentKey == key {
		return g.client, nil
	}

	if g.client != nil {
		if err := g.client.Close(); err != nil {
			slog.Warn("failed to close previous genai client", "error", err)
		}
	}

	opts := append(append([]option.ClientOption(nil), g.clientOpts...), option.WithAPIKey(key))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	g.client = client
	g.currentKey = key
	return client, nil
}

func (g *Generator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	g.currentKey = ""
	return err
}
