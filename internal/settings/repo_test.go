package settings_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"labelflow/internal/settings"
)

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := settings.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "default_provider", "default_model", "gemini_api_key", "openai_api_key", "cohere_api_key"}).
			AddRow(1, "gemini", "gemini-1.5-flash", "g-key", "", "c-key")

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, default_provider, default_model, gemini_api_key, openai_api_key, cohere_api_key FROM settings WHERE id = 1")).
			WillReturnRows(rows)

		s, err := repo.Get(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "gemini", s.DefaultProvider)
		assert.Equal(t, "c-key", s.CohereAPIKey)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
			WillReturnError(sqlmock.ErrCancelled)

		s, err := repo.Get(context.Background())
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestPostgresRepo_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := settings.NewPostgresRepo(db)
	s := &settings.Settings{
		DefaultProvider: "openai",
		DefaultModel:    "gpt-4o-mini",
		OpenAIAPIKey:    "sk-1",
	}

	mock.ExpectExec(regexp.QuoteMeta("SET default_provider = $1, default_model = $2, gemini_api_key = $3, openai_api_key = $4, cohere_api_key = $5, updated_at = NOW()")).
		WithArgs(s.DefaultProvider, s.DefaultModel, s.GeminiAPIKey, s.OpenAIAPIKey, s.CohereAPIKey).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, repo.Update(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}
