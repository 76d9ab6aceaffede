package templates_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelflow/features/templates"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := &templates.Record{Name: "Survey", Content: []byte(`[]`), ContentHash: "h", PlaceholderCount: 0}
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO templates (name, content, content_hash, placeholder_count) VALUES ($1, $2, $3, $4) RETURNING id, created_at")).
		WithArgs("Survey", []byte(`[]`), "h", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("t-1", now))

	err = templates.NewPostgresRepo(db).Save(context.Background(), rec)
	assert.NoError(t, err)
	assert.Equal(t, "t-1", rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, content, content_hash, placeholder_count, created_at FROM templates WHERE id = $1")).
		WithArgs(templateID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "content", "content_hash", "placeholder_count", "created_at"}).
			AddRow(templateID, "Survey", []byte(`[{"type":"p"}]`), "h", 0, time.Now()))

	rec, err := templates.NewPostgresRepo(db).Get(context.Background(), templateID)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"p"}]`, string(rec.Content))
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = templates.NewPostgresRepo(db).Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

const templateID = "5f0c7a1e-9a4b-4c7e-8f2d-1b3c5d7e9f01"

func TestPostgresRepo_ListAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := templates.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, placeholder_count, created_at FROM templates ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "placeholder_count", "created_at"}).
			AddRow("t-2", "B", 1, time.Now()).
			AddRow("t-1", "A", 3, time.Now()))
	list, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM templates")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
