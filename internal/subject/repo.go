// Package subject persists the subject catalogue.
package subject

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Subject is a course that students enroll in and teachers are assigned to.
type Subject struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, name, code string) (Subject, error) {
	s := Subject{ID: uuid.NewString(), Name: name, Code: code}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO subjects (id, name, code)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, s.ID, s.Name, s.Code).Scan(&s.CreatedAt)
	if err != nil {
		return Subject{}, err
	}
	return s, nil
}

func (r *Repository) List(ctx context.Context) ([]Subject, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, code, created_at FROM subjects ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns a subject by id, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*Subject, error) {
	var s Subject
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, code, created_at FROM subjects WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Code, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
