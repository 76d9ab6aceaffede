package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"labelflow/internal/generation"
)

const (
	ProviderOpenAI = "openai"
	ProviderCohere = "cohere"
)

var defaultModels = map[string]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderCohere: "command-r",
}

// Client calls a chat completion HTTP API for one provider.
type Client struct {
	provider string
	client   *http.Client
	baseURL  string
}

func NewClient(provider string, timeout time.Duration) *Client {
	return &Client{
		provider: strings.ToLower(provider),
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

func (c *Client) Complete(ctx context.Context, req generation.CompletionRequest) (string, error) {
	if req.APIKey == "" {
		return "", fmt.Errorf("%s api key not configured", c.provider)
	}
	model := req.Model
	if model == "" {
		model = defaultModels[c.provider]
	}

	switch c.provider {
	case ProviderOpenAI:
		return c.completeOpenAI(ctx, req, model)
	case ProviderCohere:
		return c.completeCohere(ctx, req, model)
	default:
		return "", fmt.Errorf("unsupported provider %q", c.provider)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) completeOpenAI(ctx context.Context, req generation.CompletionRequest, model string) (string, error) {
	url := "https://api.openai.com/v1/chat/completions"
	if c.baseURL != "" {
		url = c.baseURL
	}

	reqBody := map[string]interface{}{
		"model":    model,
		"messages": []chatMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.ContextID != "" {
		reqBody["user"] = req.ContextID
	}

	var result struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, url, req.APIKey, reqBody, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}

func (c *Client) completeCohere(ctx context.Context, req generation.CompletionRequest, model string) (string, error) {
	url := "https://api.cohere.com/v2/chat"
	if c.baseURL != "" {
		url = c.baseURL
	}

	reqBody := map[string]interface{}{
		"model":    model,
		"messages": []chatMessage{{Role: "user", Content: req.Prompt}},
	}

	var result struct {
		Message struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
	}
	if err := c.post(ctx, url, req.APIKey, reqBody, &result); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, part := range result.Message.Content {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

func (c *Client) post(ctx context.Context, url, apiKey string, body interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s api error: %d %s", c.provider, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
