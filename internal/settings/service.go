package settings

import (
	"context"
	"strings"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderCohere = "cohere"
)

type Settings struct {
	ID              int    `json:"-"`
	DefaultProvider string `json:"default_provider"`
	DefaultModel    string `json:"default_model"`
	GeminiAPIKey    string `json:"gemini_api_key"`
	OpenAIAPIKey    string `json:"openai_api_key"`
	CohereAPIKey    string `json:"cohere_api_key"`
}

// APIKey returns the stored key for provider, or "" when unknown.
func (s *Settings) APIKey(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderGemini:
		return s.GeminiAPIKey
	case ProviderOpenAI:
		return s.OpenAIAPIKey
	case ProviderCohere:
		return s.CohereAPIKey
	default:
		return ""
	}
}

// Masked returns a copy safe to show to operators.
func (s *Settings) Masked() *Settings {
	out := *s
	out.GeminiAPIKey = maskKey(s.GeminiAPIKey)
	out.OpenAIAPIKey = maskKey(s.OpenAIAPIKey)
	out.CohereAPIKey = maskKey(s.CohereAPIKey)
	return &out
}

const maskPrefix = "****"

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return maskPrefix
	}
	return maskPrefix + key[len(key)-4:]
}

func isMasked(key string) bool {
	return strings.HasPrefix(key, maskPrefix)
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

// Update stores set. Keys sent back in masked form keep their stored value.
func (s *Service) Update(ctx context.Context, set *Settings) error {
	if isMasked(set.GeminiAPIKey) || isMasked(set.OpenAIAPIKey) || isMasked(set.CohereAPIKey) {
		current, err := s.repo.Get(ctx)
		if err != nil {
			return err
		}
		if isMasked(set.GeminiAPIKey) {
			set.GeminiAPIKey = current.GeminiAPIKey
		}
		if isMasked(set.OpenAIAPIKey) {
			set.OpenAIAPIKey = current.OpenAIAPIKey
		}
		if isMasked(set.CohereAPIKey) {
			set.CohereAPIKey = current.CohereAPIKey
		}
	}
	return s.repo.Update(ctx, set)
}
