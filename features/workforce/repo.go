package workforce

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) List(ctx context.Context) ([]Worker, error) {
	query := `SELECT id, domain, lang, location FROM workers ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workers := []Worker{}
	for rows.Next() {
		var w Worker
		if err := rows.Scan(&w.ID, pq.Array(&w.Domain), pq.Array(&w.Lang), &w.Location); err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (r *PostgresRepo) Upsert(ctx context.Context, w *Worker) error {
	query := `INSERT INTO workers (id, domain, lang, location) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET domain = EXCLUDED.domain, lang = EXCLUDED.lang, location = EXCLUDED.location`
	_, err := r.db.ExecContext(ctx, query, w.ID, pq.Array(w.Domain), pq.Array(w.Lang), w.Location)
	return err
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM workers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workers`).Scan(&count)
	return count, err
}
