package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateDay is returned by Insert when another record for the same
// (student, subject, day) won the race against the unique index.
var ErrDuplicateDay = errors.New("attendance already recorded for this day")

// Repository persists attendance in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindInWindow returns the record for (student, subject) whose marked_at falls
// inside [from, to), nil when the day is unmarked.
func (r *Repository) FindInWindow(ctx context.Context, studentID, subjectID string, from, to time.Time) (*Record, error) {
	var rec Record
	err := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, subject_id, day, marked_at, marked_by, status
		FROM attendance
		WHERE student_id = $1 AND subject_id = $2 AND marked_at >= $3 AND marked_at < $4
		LIMIT 1
	`, studentID, subjectID, from, to).
		Scan(&rec.ID, &rec.StudentID, &rec.SubjectID, &rec.Day, &rec.MarkedAt, &rec.MarkedBy, &rec.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Insert writes a new record. A unique violation on the per-day index maps to
// ErrDuplicateDay so the service can re-read and apply its policy.
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (id, student_id, subject_id, day, marked_at, marked_by, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.StudentID, rec.SubjectID, rec.Day, rec.MarkedAt, rec.MarkedBy, rec.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateDay
		}
		return err
	}
	return nil
}

// Update overwrites a record's mutable fields.
func (r *Repository) Update(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance
		SET student_id = $2, subject_id = $3, day = $4, marked_at = $5, marked_by = $6, status = $7
		WHERE id = $1
	`, rec.ID, rec.StudentID, rec.SubjectID, rec.Day, rec.MarkedAt, rec.MarkedBy, rec.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateDay
		}
	}
	return err
}

// Get returns a record by id, nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, subject_id, day, marked_at, marked_by, status
		FROM attendance WHERE id = $1
	`, id).Scan(&rec.ID, &rec.StudentID, &rec.SubjectID, &rec.Day, &rec.MarkedAt, &rec.MarkedBy, &rec.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	return err
}

const viewSelect = `
	SELECT a.id, a.student_id, a.subject_id, a.day, a.marked_at, a.marked_by, a.status,
	       st.name, st.roll_number, su.name, su.code
	FROM attendance a
	JOIN students st ON st.id = a.student_id
	JOIN subjects su ON su.id = a.subject_id`

func (r *Repository) scanViews(rows *sql.Rows) ([]View, error) {
	defer rows.Close()
	var out []View
	for rows.Next() {
		var v View
		if err := rows.Scan(
			&v.ID, &v.StudentID, &v.SubjectID, &v.Day, &v.MarkedAt, &v.MarkedBy, &v.Status,
			&v.StudentName, &v.StudentRoll, &v.SubjectName, &v.SubjectCode,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListAll returns records newest first. A non-nil subjectIDs restricts the
// listing to those subjects (teacher scoping); an empty non-nil slice matches
// nothing.
func (r *Repository) ListAll(ctx context.Context, subjectIDs []string) ([]View, error) {
	if subjectIDs == nil {
		rows, err := r.db.QueryContext(ctx, viewSelect+` ORDER BY a.marked_at DESC`)
		if err != nil {
			return nil, err
		}
		return r.scanViews(rows)
	}
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, viewSelect+`
		WHERE a.subject_id = ANY($1) ORDER BY a.marked_at DESC`, subjectIDs)
	if err != nil {
		return nil, err
	}
	return r.scanViews(rows)
}

// ListByStudent returns a student's records newest first, optionally limited
// to one subject.
func (r *Repository) ListByStudent(ctx context.Context, studentID, subjectID string) ([]View, error) {
	query := viewSelect + ` WHERE a.student_id = $1`
	args := []any{studentID}
	if subjectID != "" {
		query += ` AND a.subject_id = $2`
		args = append(args, subjectID)
	}
	query += ` ORDER BY a.marked_at DESC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r.scanViews(rows)
}

// ListRange returns records for a subject between two days inclusive,
// ordered for export.
func (r *Repository) ListRange(ctx context.Context, subjectID string, from, to time.Time) ([]View, error) {
	rows, err := r.db.QueryContext(ctx, viewSelect+`
		WHERE a.subject_id = $1 AND a.day >= $2 AND a.day <= $3
		ORDER BY a.day, st.name`, subjectID, from, to)
	if err != nil {
		return nil, err
	}
	return r.scanViews(rows)
}

// Recent returns the newest records for the dashboard.
func (r *Repository) Recent(ctx context.Context, limit int) ([]View, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, viewSelect+` ORDER BY a.marked_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return r.scanViews(rows)
}

// CountSince counts records marked at or after the given instant.
func (r *Repository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE marked_at >= $1`, since).Scan(&n)
	return n, err
}

// CountStudents is used by the dashboard summary.
func (r *Repository) CountStudents(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	return n, err
}

// NewID mints a record id.
func NewID() string { return uuid.NewString() }
