// Package user manages accounts (admin, teacher, student) and the
// teacher-to-subject assignment set.
package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is an account. PasswordHash never leaves this package.
type User struct {
	ID               string    `json:"_id"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	Name             string    `json:"name"`
	StudentID        *string   `json:"studentId,omitempty"`
	AssignedSubjects []string  `json:"assignedSubjects,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`

	passwordHash string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, u User, passwordHash string) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, name, student_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, u.ID, u.Email, passwordHash, u.Role, u.Name, u.StudentID).Scan(&u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *Repository) findOne(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, name, student_id, created_at
		FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.passwordHash, &u.Role, &u.Name, &u.StudentID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if u.Role == "teacher" {
		ids, err := r.AssignedSubjectIDs(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		u.AssignedSubjects = ids
	}
	return &u, nil
}

// FindByEmail returns nil when no account exists.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "email = $1", email)
}

// FindByID returns nil when no account exists.
func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByStudentID returns the student's login account.
func (r *Repository) FindByStudentID(ctx context.Context, studentID string) (*User, error) {
	return r.findOne(ctx, "student_id = $1 AND role = 'student'", studentID)
}

func (r *Repository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListTeachers returns teacher accounts with their assigned subject ids.
func (r *Repository) ListTeachers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, role, name, created_at
		FROM users WHERE role = 'teacher' ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Role, &u.Name, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		ids, err := r.AssignedSubjectIDs(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].AssignedSubjects = ids
	}
	return out, nil
}

// AssignSubjects replaces a teacher's assigned-subject set.
func (r *Repository) AssignSubjects(ctx context.Context, teacherID string, subjectIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_subjects WHERE teacher_id = $1`, teacherID); err != nil {
		return err
	}
	for _, sid := range subjectIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO teacher_subjects (teacher_id, subject_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, teacherID, sid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) AssignedSubjectIDs(ctx context.Context, teacherID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT subject_id FROM teacher_subjects WHERE teacher_id = $1
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsAssigned reports whether a teacher is assigned to a subject.
func (r *Repository) IsAssigned(ctx context.Context, teacherID, subjectID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM teacher_subjects WHERE teacher_id = $1 AND subject_id = $2
	`, teacherID, subjectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Assignment is one (teacher, subject) pair, used to build the
// subjects-with-teachers listing.
type Assignment struct {
	TeacherID    string
	TeacherName  string
	TeacherEmail string
	SubjectID    string
}

func (r *Repository) ListAssignments(ctx context.Context) ([]Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, ts.subject_id
		FROM teacher_subjects ts
		JOIN users u ON u.id = ts.teacher_id
		ORDER BY u.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.TeacherID, &a.TeacherName, &a.TeacherEmail, &a.SubjectID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
