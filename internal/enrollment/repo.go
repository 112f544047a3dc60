// Package enrollment manages course enrollment requests and their approval.
package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Enrollment statuses. A request is reviewed exactly once:
// pending -> approved | rejected, no further transitions.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

type Enrollment struct {
	ID          string     `json:"_id"`
	StudentID   string     `json:"studentId"`
	SubjectID   string     `json:"subjectId"`
	TeacherID   string     `json:"teacherId"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requestedAt"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy  *string    `json:"reviewedBy,omitempty"`
}

// View is an enrollment joined with the names the UI renders.
type View struct {
	Enrollment
	StudentName  string `json:"studentName"`
	StudentRoll  string `json:"studentRollNumber"`
	StudentEmail string `json:"studentEmail"`
	SubjectName  string `json:"subjectName"`
	SubjectCode  string `json:"subjectCode"`
	TeacherName  string `json:"teacherName"`
	TeacherEmail string `json:"teacherEmail"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, e Enrollment) (Enrollment, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (id, student_id, subject_id, teacher_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING requested_at
	`, e.ID, e.StudentID, e.SubjectID, e.TeacherID, e.Status).Scan(&e.RequestedAt)
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

// FindTriple returns the enrollment for (student, subject, teacher), nil when absent.
func (r *Repository) FindTriple(ctx context.Context, studentID, subjectID, teacherID string) (*Enrollment, error) {
	return r.findOne(ctx, `student_id = $1 AND subject_id = $2 AND teacher_id = $3`,
		studentID, subjectID, teacherID)
}

// Get returns an enrollment by id, nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Enrollment, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *Repository) findOne(ctx context.Context, where string, args ...any) (*Enrollment, error) {
	var e Enrollment
	err := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, subject_id, teacher_id, status, requested_at, reviewed_at, reviewed_by
		FROM enrollments WHERE `+where, args...).
		Scan(&e.ID, &e.StudentID, &e.SubjectID, &e.TeacherID, &e.Status, &e.RequestedAt, &e.ReviewedAt, &e.ReviewedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// HasApproved reports whether an approved enrollment exists for the
// (student, subject) pair with any teacher. This is the baseline gate for
// every attendance write.
func (r *Repository) HasApproved(ctx context.Context, studentID, subjectID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM enrollments
		WHERE student_id = $1 AND subject_id = $2 AND status = 'approved'
		LIMIT 1
	`, studentID, subjectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Review stamps the one allowed status transition.
func (r *Repository) Review(ctx context.Context, id, status, reviewedBy string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE enrollments SET status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1
	`, id, status, reviewedBy, at)
	return err
}

// Filter narrows enrollment listings. Empty fields are ignored.
type Filter struct {
	Status    string
	SubjectID string
	TeacherID string
	StudentID string
}

const viewSelect = `
	SELECT e.id, e.student_id, e.subject_id, e.teacher_id, e.status,
	       e.requested_at, e.reviewed_at, e.reviewed_by,
	       st.name, st.roll_number, st.email,
	       su.name, su.code,
	       t.name, t.email
	FROM enrollments e
	JOIN students st ON st.id = e.student_id
	JOIN subjects su ON su.id = e.subject_id
	JOIN users t ON t.id = e.teacher_id`

// List returns enrollment views matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]View, error) {
	query := viewSelect + ` WHERE 1=1`
	args := []any{}
	add := func(clause string, val string) {
		if val != "" {
			args = append(args, val)
			query += ` AND ` + clause + `$` + itoa(len(args))
		}
	}
	add("e.status = ", f.Status)
	add("e.subject_id = ", f.SubjectID)
	add("e.teacher_id = ", f.TeacherID)
	add("e.student_id = ", f.StudentID)
	query += ` ORDER BY e.requested_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []View
	for rows.Next() {
		var v View
		if err := rows.Scan(
			&v.ID, &v.StudentID, &v.SubjectID, &v.TeacherID, &v.Status,
			&v.RequestedAt, &v.ReviewedAt, &v.ReviewedBy,
			&v.StudentName, &v.StudentRoll, &v.StudentEmail,
			&v.SubjectName, &v.SubjectCode,
			&v.TeacherName, &v.TeacherEmail,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return string(rune('0'+i/10)) + string(rune('0'+i%10))
}
