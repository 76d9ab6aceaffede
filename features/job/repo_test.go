package job_test

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelflow/features/job"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	j := &job.Job{
		BatchID: "batch-1",
		Handler: "assignment-worker",
		Topic:   "task.assign",
		Payload: json.RawMessage(`{"seq":1}`),
		Error:   "insert failed",
		Retries: 5,
	}
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO failed_jobs (batch_id, handler, topic, payload, error, retries) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at")).
		WithArgs("batch-1", "assignment-worker", "task.assign", []byte(`{"seq":1}`), "insert failed", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("job-1", now))

	require.NoError(t, job.NewPostgresRepo(db).Save(context.Background(), j))
	assert.Equal(t, "job-1", j.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "batch_id", "handler", "topic", "payload", "error", "retries", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, batch_id, handler, topic, payload, error, retries, created_at FROM failed_jobs ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("job-2", "b", "assignment-worker", "task.assign", []byte(`{}`), "e2", 5, time.Now()).
			AddRow("job-1", "b", "assignment-worker", "task.assign", []byte(`{}`), "e1", 5, time.Now()))

	jobs, err := job.NewPostgresRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, "task.assign", jobs[0].Topic)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_DeleteAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := job.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM failed_jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "job-1"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM failed_jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
