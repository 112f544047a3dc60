package attendance

import (
	"context"
	"errors"
	"time"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
	"classtrack/internal/metrics"
	"classtrack/internal/settings"
)

// RecordStore is the persistence surface the engine needs.
type RecordStore interface {
	FindInWindow(ctx context.Context, studentID, subjectID string, from, to time.Time) (*Record, error)
	Insert(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}

// ApprovalChecker answers the baseline enrollment gate.
type ApprovalChecker interface {
	HasApproved(ctx context.Context, studentID, subjectID string) (bool, error)
}

// Outcome of a mark-or-update.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeNoop    Outcome = "noop"
)

// MarkResult reports what the dedup engine did. On OutcomeNoop, Record is the
// pre-existing same-day record.
type MarkResult struct {
	Outcome Outcome
	Record  Record
}

// Service composes the authorization check and the dedup engine.
type Service struct {
	records     RecordStore
	enrollments ApprovalChecker
	settings    settings.Accessor
	loc         *time.Location
	now         func() time.Time
	newID       func() string
}

func NewService(records RecordStore, enrollments ApprovalChecker, flag settings.Accessor, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		records:     records,
		enrollments: enrollments,
		settings:    flag,
		loc:         loc,
		now:         time.Now,
		newID:       NewID,
	}
}

// Authorize decides whether the principal may write attendance for
// (student, subject) in the given mode. The enrollment gate applies to every
// write; the manual-flag and subject-assignment gates apply to teachers only.
func (s *Service) Authorize(ctx context.Context, p auth.Principal, studentID, subjectID string, mode Mode) error {
	approved, err := s.enrollments.HasApproved(ctx, studentID, subjectID)
	if err != nil {
		return err
	}
	if !approved {
		return apperr.Authorization(apperr.ReasonNotEnrolled,
			"student is not enrolled or not approved in this course")
	}

	if mode != ModeManual {
		return nil
	}
	switch p.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleTeacher:
		allowed, err := s.settings.ManualAllowed(ctx)
		if err != nil {
			return err
		}
		if !allowed {
			return apperr.Authorization(apperr.ReasonManualDisabled, "manual attendance not allowed")
		}
		if !p.IsAssigned(subjectID) {
			return apperr.Authorization(apperr.ReasonNotAssigned, "not assigned to this subject")
		}
		return nil
	default:
		return apperr.Authorization(apperr.ReasonRole, "only teachers can mark manual attendance")
	}
}

// MarkOrUpdate is the deduplication engine: at most one record per
// (student, subject, calendar day). Auto writes never touch an existing
// record; manual writes overwrite it in place.
func (s *Service) MarkOrUpdate(ctx context.Context, studentID, subjectID string, when *time.Time, mode Mode, status Status) (MarkResult, error) {
	markedAt := s.now().In(s.loc)
	if when != nil {
		markedAt = when.In(s.loc)
	}
	if mode == ModeAuto {
		// Automatic recognition never reports absence or leave.
		status = StatusPresent
	}
	from, to := DayWindow(markedAt, s.loc)

	existing, err := s.records.FindInWindow(ctx, studentID, subjectID, from, to)
	if err != nil {
		return MarkResult{}, err
	}
	if existing == nil {
		rec := Record{
			ID:        s.newID(),
			StudentID: studentID,
			SubjectID: subjectID,
			Day:       from,
			MarkedAt:  markedAt,
			MarkedBy:  mode,
			Status:    status,
		}
		err := s.records.Insert(ctx, rec)
		if err == nil {
			return MarkResult{Outcome: OutcomeCreated, Record: rec}, nil
		}
		if !errors.Is(err, ErrDuplicateDay) {
			return MarkResult{}, err
		}
		// Lost the race against a concurrent same-day write: fall through to
		// the existing-record policy.
		existing, err = s.records.FindInWindow(ctx, studentID, subjectID, from, to)
		if err != nil {
			return MarkResult{}, err
		}
		if existing == nil {
			return MarkResult{}, ErrDuplicateDay
		}
	}

	if mode == ModeAuto {
		return MarkResult{Outcome: OutcomeNoop, Record: *existing}, nil
	}

	existing.Status = status
	existing.MarkedBy = ModeManual
	existing.MarkedAt = markedAt
	if err := s.records.Update(ctx, *existing); err != nil {
		return MarkResult{}, err
	}
	return MarkResult{Outcome: OutcomeUpdated, Record: *existing}, nil
}

// MarkRequest is one attendance write.
type MarkRequest struct {
	StudentID string
	SubjectID string
	When      *time.Time
	Mode      Mode
	Status    Status
}

// Mark validates, authorizes and applies a single attendance write.
func (s *Service) Mark(ctx context.Context, p auth.Principal, req MarkRequest) (MarkResult, error) {
	if req.StudentID == "" || req.SubjectID == "" {
		return MarkResult{}, apperr.Validation("student ID and subject ID required")
	}
	if req.Mode != ModeAuto && req.Mode != ModeManual {
		return MarkResult{}, apperr.Validation("markedBy must be auto or manual")
	}
	if req.Status == "" {
		req.Status = StatusPresent
	}
	if !ValidStatus(req.Status) {
		return MarkResult{}, apperr.Validation("invalid status, must be present, absent, or leave")
	}

	if err := s.Authorize(ctx, p, req.StudentID, req.SubjectID, req.Mode); err != nil {
		return MarkResult{}, err
	}
	res, err := s.MarkOrUpdate(ctx, req.StudentID, req.SubjectID, req.When, req.Mode, req.Status)
	if err != nil {
		return MarkResult{}, err
	}
	metrics.MarksTotal.WithLabelValues(string(req.Mode), string(res.Outcome)).Inc()
	return res, nil
}

// BulkItem is one entry of a bulk mark.
type BulkItem struct {
	StudentID string `json:"studentId"`
	Status    Status `json:"status"`
}

// BulkEntry is a per-item success.
type BulkEntry struct {
	StudentID    string  `json:"studentId"`
	Action       Outcome `json:"action"`
	AttendanceID string  `json:"attendanceId"`
}

// BulkError is a per-item failure.
type BulkError struct {
	StudentID string `json:"studentId"`
	Error     string `json:"error"`
}

// BulkResult always carries both arrays so callers can reconcile partial
// success.
type BulkResult struct {
	Results []BulkEntry `json:"results"`
	Errors  []BulkError `json:"errors"`
}

// BulkMark marks a whole class for one subject and day. The assignment and
// manual-flag preconditions are checked once for the batch; the enrollment
// gate and the dedup engine run per item, and one item's failure never aborts
// the rest.
func (s *Service) BulkMark(ctx context.Context, p auth.Principal, subjectID string, date time.Time, items []BulkItem) (BulkResult, error) {
	if p.Role != auth.RoleTeacher {
		return BulkResult{}, apperr.Authorization(apperr.ReasonRole, "teachers only")
	}
	allowed, err := s.settings.ManualAllowed(ctx)
	if err != nil {
		return BulkResult{}, err
	}
	if !allowed {
		return BulkResult{}, apperr.Authorization(apperr.ReasonManualDisabled, "manual attendance not allowed by admin")
	}
	if !p.IsAssigned(subjectID) {
		return BulkResult{}, apperr.Authorization(apperr.ReasonNotAssigned, "not assigned to this subject")
	}

	out := BulkResult{Results: []BulkEntry{}, Errors: []BulkError{}}
	for _, item := range items {
		status := item.Status
		if status == "" {
			status = StatusPresent
		}
		if !ValidStatus(status) {
			out.Errors = append(out.Errors, BulkError{StudentID: item.StudentID, Error: "invalid status"})
			continue
		}
		approved, err := s.enrollments.HasApproved(ctx, item.StudentID, subjectID)
		if err != nil {
			out.Errors = append(out.Errors, BulkError{StudentID: item.StudentID, Error: err.Error()})
			continue
		}
		if !approved {
			out.Errors = append(out.Errors, BulkError{StudentID: item.StudentID,
				Error: "student not enrolled or not approved in this course"})
			continue
		}
		when := date
		res, err := s.MarkOrUpdate(ctx, item.StudentID, subjectID, &when, ModeManual, status)
		if err != nil {
			out.Errors = append(out.Errors, BulkError{StudentID: item.StudentID, Error: err.Error()})
			continue
		}
		metrics.MarksTotal.WithLabelValues(string(ModeManual), string(res.Outcome)).Inc()
		out.Results = append(out.Results, BulkEntry{
			StudentID:    item.StudentID,
			Action:       res.Outcome,
			AttendanceID: res.Record.ID,
		})
	}
	return out, nil
}

// EditRequest carries partial updates for an existing record. Nil fields are
// left unchanged.
type EditRequest struct {
	StudentID *string
	SubjectID *string
	Date      *time.Time
	MarkedBy  *Mode
	Status    *Status
}

// Edit updates a record in place. Teachers may only edit records of subjects
// they are assigned to, and the manual flag gates them; admins bypass both.
func (s *Service) Edit(ctx context.Context, p auth.Principal, id string, req EditRequest) (Record, error) {
	if p.Role != auth.RoleAdmin && p.Role != auth.RoleTeacher {
		return Record{}, apperr.Authorization(apperr.ReasonRole, "access denied")
	}
	if req.Status != nil && !ValidStatus(*req.Status) {
		return Record{}, apperr.Validation("invalid status, must be present, absent, or leave")
	}
	if p.Role == auth.RoleTeacher && req.MarkedBy != nil && *req.MarkedBy == ModeManual {
		allowed, err := s.settings.ManualAllowed(ctx)
		if err != nil {
			return Record{}, err
		}
		if !allowed {
			return Record{}, apperr.Authorization(apperr.ReasonManualDisabled, "manual attendance not allowed")
		}
	}

	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec == nil {
		return Record{}, apperr.NotFound("attendance record not found")
	}
	if p.Role == auth.RoleTeacher {
		canEdit := p.IsAssigned(rec.SubjectID)
		if !canEdit && req.SubjectID != nil {
			canEdit = p.IsAssigned(*req.SubjectID)
		}
		if !canEdit {
			return Record{}, apperr.Authorization(apperr.ReasonNotAssigned, "not authorized to edit this attendance")
		}
	}

	if req.StudentID != nil {
		rec.StudentID = *req.StudentID
	}
	if req.SubjectID != nil {
		rec.SubjectID = *req.SubjectID
	}
	if req.Date != nil {
		rec.MarkedAt = req.Date.In(s.loc)
		rec.Day, _ = DayWindow(rec.MarkedAt, s.loc)
	}
	if req.MarkedBy != nil {
		rec.MarkedBy = *req.MarkedBy
	}
	if req.Status != nil {
		rec.Status = *req.Status
	}

	if err := s.records.Update(ctx, *rec); err != nil {
		if errors.Is(err, ErrDuplicateDay) {
			return Record{}, apperr.Validation("attendance already exists for that student, subject and day")
		}
		return Record{}, err
	}
	return *rec, nil
}

// Remove deletes a record. Teachers may only delete within their assigned
// subjects.
func (s *Service) Remove(ctx context.Context, p auth.Principal, id string) error {
	if p.Role != auth.RoleAdmin && p.Role != auth.RoleTeacher {
		return apperr.Authorization(apperr.ReasonRole, "access denied")
	}
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperr.NotFound("attendance record not found")
	}
	if p.Role == auth.RoleTeacher && !p.IsAssigned(rec.SubjectID) {
		return apperr.Authorization(apperr.ReasonNotAssigned, "not authorized to delete this attendance")
	}
	return s.records.Delete(ctx, id)
}
