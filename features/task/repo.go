package task

import (
	"context"
	"database/sql"
	"fmt"

	"labelflow/internal/fanout"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const insertTask = `INSERT INTO tasks (batch_id, seq, worker_id, template_id, project_ref, name, content, timer, reviewer, type)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (batch_id, seq, worker_id) DO NOTHING`

// InsertBatch writes records in a single transaction and returns how many
// rows were new.
func (r *PostgresRepo) InsertBatch(ctx context.Context, batchID string, records []fanout.Record) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTask)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		worker := ""
		if rec.WorkerAssignment != nil {
			worker = *rec.WorkerAssignment
		}
		res, err := stmt.ExecContext(ctx, batchID, rec.Seq, worker, rec.TemplateID, rec.ProjectRef,
			rec.Name, []byte(rec.Content), rec.Timer, rec.Reviewer, rec.Type)
		if err != nil {
			return 0, fmt.Errorf("insert task %d: %w", rec.Seq, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

func (r *PostgresRepo) List(ctx context.Context, templateID string) ([]Task, error) {
	query := `SELECT id, batch_id, seq, worker_id, template_id, project_ref, name, content, timer, reviewer, type, created_at
FROM tasks WHERE ($1 = '' OR template_id = $1) ORDER BY created_at, batch_id, seq, worker_id`
	rows, err := r.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var worker string
		var content []byte
		if err := rows.Scan(&t.ID, &t.BatchID, &t.Seq, &worker, &t.TemplateID, &t.ProjectRef, &t.Name,
			&content, &t.Timer, &t.Reviewer, &t.Type, &t.CreatedAt); err != nil {
			return nil, err
		}
		if worker != "" {
			t.WorkerAssignment = &worker
		}
		t.Content = content
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count)
	return count, err
}
