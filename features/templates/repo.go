package templates

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM templates WHERE content_hash = $1)`
	err := r.db.QueryRowContext(ctx, query, hash).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepo) Save(ctx context.Context, rec *Record) error {
	query := `INSERT INTO templates (name, content, content_hash, placeholder_count) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, rec.Name, []byte(rec.Content), rec.ContentHash, rec.PlaceholderCount).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	rec := &Record{}
	var content []byte
	query := `SELECT id, name, content, content_hash, placeholder_count, created_at FROM templates WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.Name, &content, &rec.ContentHash, &rec.PlaceholderCount, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Content = content
	return rec, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Record, error) {
	query := `SELECT id, name, placeholder_count, created_at FROM templates ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.PlaceholderCount, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates`).Scan(&count)
	return count, err
}
