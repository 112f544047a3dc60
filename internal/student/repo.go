// Package student manages the student registry and registration pipeline.
package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Student is a registered student with an enrolled face model.
type Student struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	RollNumber string    `json:"rollNumber"`
	Email      string    `json:"email"`
	VideoPath  string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, s Student) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, name, roll_number, email, video_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, s.ID, s.Name, s.RollNumber, s.Email, s.VideoPath).Scan(&s.CreatedAt)
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

// Get returns nil when the student does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*Student, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*Student, error) {
	return r.findOne(ctx, "email = $1", email)
}

func (r *Repository) GetByRollNumber(ctx context.Context, roll string) (*Student, error) {
	return r.findOne(ctx, "roll_number = $1", roll)
}

func (r *Repository) findOne(ctx context.Context, where string, arg any) (*Student, error) {
	var s Student
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, roll_number, email, video_path, created_at
		FROM students WHERE `+where, arg).
		Scan(&s.ID, &s.Name, &s.RollNumber, &s.Email, &s.VideoPath, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Search lists students, optionally filtered by a case-insensitive match on
// name, roll number or email.
func (r *Repository) Search(ctx context.Context, search string) ([]Student, error) {
	query := `
		SELECT id, name, roll_number, email, video_path, created_at
		FROM students`
	args := []any{}
	if search != "" {
		query += `
		WHERE name ILIKE '%' || $1 || '%'
		   OR roll_number ILIKE '%' || $1 || '%'
		   OR email ILIKE '%' || $1 || '%'`
		args = append(args, search)
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.RollNumber, &s.Email, &s.VideoPath, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RelatedCounts returns how many attendance and enrollment rows reference the
// student, reported back to the admin on delete.
func (r *Repository) RelatedCounts(ctx context.Context, id string) (attendance, enrollments int, err error) {
	if err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE student_id = $1`, id).Scan(&attendance); err != nil {
		return 0, 0, err
	}
	if err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE student_id = $1`, id).Scan(&enrollments); err != nil {
		return 0, 0, err
	}
	return attendance, enrollments, nil
}

// Delete removes the student row; attendance, enrollments and the login
// account follow via ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
