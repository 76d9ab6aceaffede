package settings

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context) (*Settings, error) {
	s := &Settings{}
	query := `SELECT id, default_provider, default_model, gemini_api_key, openai_api_key, cohere_api_key FROM settings WHERE id = 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.DefaultProvider, &s.DefaultModel, &s.GeminiAPIKey, &s.OpenAIAPIKey, &s.CohereAPIKey)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) Update(ctx context.Context, s *Settings) error {
	query := `
		UPDATE settings
		SET default_provider = $1, default_model = $2, gemini_api_key = $3, openai_api_key = $4, cohere_api_key = $5, updated_at = NOW()
		WHERE id = 1
	`
	_, err := r.db.ExecContext(ctx, query, s.DefaultProvider, s.DefaultModel, s.GeminiAPIKey, s.OpenAIAPIKey, s.CohereAPIKey)
	return err
}
