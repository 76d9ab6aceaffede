package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"

	"labelflow/internal/generation"
)

func TestGenerator_Complete_NoKey(t *testing.T) {
	g := NewGenerator("gemini-1.5-flash")

	_, err := g.Complete(context.Background(), generation.CompletionRequest{Prompt: "hello"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gemini api key not configured")
}

func TestGenerator_ClientSwitching(t *testing.T) {
	g := NewGenerator("gemini-1.5-flash")
	ctx := context.Background()
	defer g.Close()

	client1, err := g.getClient(ctx, "key1")
	assert.NoError(t, err)
	assert.NotNil(t, client1)
	assert.Equal(t, "key1", g.currentKey)

	client2, err := g.getClient(ctx, "key1")
	assert.NoError(t, err)
	assert.Same(t, client1, client2)

	client3, err := g.getClient(ctx, "key2")
	assert.NoError(t, err)
	assert.NotSame(t, client1, client3)
	assert.Equal(t, "key2", g.currentKey)
}

func TestResponseText(t *testing.T) {
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("1. a\n"), genai.Text("2. b")}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
		},
	}
	assert.Equal(t, "1. a\n2. b", responseText(resp))
}
