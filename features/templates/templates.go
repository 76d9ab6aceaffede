package templates

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"labelflow/internal/template"
)

var (
	ErrDuplicate = errors.New("template with identical content already exists")
	ErrNameEmpty = errors.New("template name is required")
)

// Record is a stored template document.
type Record struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Content          json.RawMessage `json:"content"`
	ContentHash      string          `json:"-"`
	PlaceholderCount int             `json:"placeholder_count"`
	CreatedAt        time.Time       `json:"created_at"`
}

type Repository interface {
	Save(ctx context.Context, rec *Record) error
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	Count(ctx context.Context) (int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates content as a template document and stores it. Invalid
// documents fail with *template.ParseError.
func (s *Service) Create(ctx context.Context, name string, content []byte) (*Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameEmpty
	}
	tmpl, err := template.Parse(content)
	if err != nil {
		return nil, err
	}
	canonical, err := template.Marshal(tmpl.Nodes)
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}

	hash := sha256.Sum256(canonical)
	rec := &Record{
		Name:             name,
		Content:          canonical,
		ContentHash:      fmt.Sprintf("%x", hash),
		PlaceholderCount: len(tmpl.Placeholders),
	}

	exists, err := s.repo.ExistsByHash(ctx, rec.ContentHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicate
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "template created", "template_id", rec.ID, "placeholders", rec.PlaceholderCount)
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.repo.List(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Load reads and parses a template on every call. Callers hold on to the
// result for as long as they need it.
func (s *Service) Load(ctx context.Context, id string) (*template.Template, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.Parse(rec.Content)
	if err != nil {
		return nil, fmt.Errorf("stored template %s: %w", id, err)
	}
	tmpl.ID = rec.ID
	tmpl.Name = rec.Name
	return tmpl, nil
}
