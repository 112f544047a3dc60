package enrollment

import (
	"context"
	"time"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
	"classtrack/internal/subject"
	"classtrack/internal/user"
)

// SubjectCatalog is the slice of the subject repository the service needs.
type SubjectCatalog interface {
	Get(ctx context.Context, id string) (*subject.Subject, error)
}

// TeacherDirectory resolves teachers and their subject assignments.
type TeacherDirectory interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
	IsAssigned(ctx context.Context, teacherID, subjectID string) (bool, error)
}

// Store is the repository surface the service depends on.
type Store interface {
	Insert(ctx context.Context, e Enrollment) (Enrollment, error)
	FindTriple(ctx context.Context, studentID, subjectID, teacherID string) (*Enrollment, error)
	Get(ctx context.Context, id string) (*Enrollment, error)
	Review(ctx context.Context, id, status, reviewedBy string, at time.Time) error
	List(ctx context.Context, f Filter) ([]View, error)
}

// Service implements the enrollment request/review lifecycle.
type Service struct {
	store    Store
	subjects SubjectCatalog
	teachers TeacherDirectory
	now      func() time.Time
}

func NewService(store Store, subjects SubjectCatalog, teachers TeacherDirectory) *Service {
	return &Service{store: store, subjects: subjects, teachers: teachers, now: time.Now}
}

// Request creates a pending enrollment for the acting student.
func (s *Service) Request(ctx context.Context, p auth.Principal, subjectID, teacherID string) (Enrollment, error) {
	if p.Role != auth.RoleStudent {
		return Enrollment{}, apperr.Authorization(apperr.ReasonRole, "students only")
	}
	if subjectID == "" {
		return Enrollment{}, apperr.Validation("subjectId is required")
	}
	if teacherID == "" {
		return Enrollment{}, apperr.Validation("teacherId is required")
	}
	if p.StudentID == "" {
		return Enrollment{}, apperr.Validation("student profile not found")
	}

	subj, err := s.subjects.Get(ctx, subjectID)
	if err != nil {
		return Enrollment{}, err
	}
	if subj == nil {
		return Enrollment{}, apperr.NotFound("subject not found")
	}

	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		return Enrollment{}, err
	}
	if teacher == nil || teacher.Role != auth.RoleTeacher {
		return Enrollment{}, apperr.NotFound("teacher not found")
	}
	assigned, err := s.teachers.IsAssigned(ctx, teacherID, subjectID)
	if err != nil {
		return Enrollment{}, err
	}
	if !assigned {
		return Enrollment{}, apperr.Validation("teacher %s is not assigned to this subject", teacher.Name)
	}

	existing, err := s.store.FindTriple(ctx, p.StudentID, subjectID, teacherID)
	if err != nil {
		return Enrollment{}, err
	}
	if existing != nil {
		return Enrollment{}, apperr.Validation("already enrolled or pending enrollment with %s", teacher.Name)
	}

	return s.store.Insert(ctx, Enrollment{
		StudentID: p.StudentID,
		SubjectID: subjectID,
		TeacherID: teacherID,
		Status:    StatusPending,
	})
}

// Review applies the single allowed transition. Teachers may only review
// requests addressed to them; admins may review any.
func (s *Service) Review(ctx context.Context, p auth.Principal, enrollmentID, status string) (*Enrollment, error) {
	if p.Role != auth.RoleTeacher && p.Role != auth.RoleAdmin {
		return nil, apperr.Authorization(apperr.ReasonRole, "teachers/admins only")
	}
	if status != StatusApproved && status != StatusRejected {
		return nil, apperr.Validation("status must be 'approved' or 'rejected'")
	}

	e, err := s.store.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperr.NotFound("enrollment not found")
	}
	if p.Role == auth.RoleTeacher && e.TeacherID != p.UserID {
		return nil, apperr.Authorization(apperr.ReasonNotAssigned,
			"this enrollment request is assigned to another teacher")
	}
	if e.Status != StatusPending {
		return nil, apperr.Validation("enrollment already %s", e.Status)
	}

	now := s.now()
	if err := s.store.Review(ctx, enrollmentID, status, p.UserID, now); err != nil {
		return nil, err
	}
	e.Status = status
	e.ReviewedAt = &now
	reviewer := p.UserID
	e.ReviewedBy = &reviewer
	return e, nil
}

// ListFor returns enrollments visible to the principal: admins see all,
// teachers only requests addressed to them.
func (s *Service) ListFor(ctx context.Context, p auth.Principal, f Filter) ([]View, error) {
	if p.Role != auth.RoleTeacher && p.Role != auth.RoleAdmin {
		return nil, apperr.Authorization(apperr.ReasonRole, "access denied")
	}
	if p.Role == auth.RoleTeacher {
		f.TeacherID = p.UserID
	}
	return s.store.List(ctx, f)
}

// ListOwn returns the acting student's enrollments.
func (s *Service) ListOwn(ctx context.Context, p auth.Principal) ([]View, error) {
	if p.Role != auth.RoleStudent {
		return nil, apperr.Authorization(apperr.ReasonRole, "students only")
	}
	if p.StudentID == "" {
		return nil, apperr.Validation("student profile not found")
	}
	return s.store.List(ctx, Filter{StudentID: p.StudentID})
}

// ApprovedForCourse lists approved enrollments of a subject. Teachers must be
// assigned to the subject and see only students enrolled with them.
func (s *Service) ApprovedForCourse(ctx context.Context, p auth.Principal, subjectID string) ([]View, error) {
	if p.Role != auth.RoleTeacher && p.Role != auth.RoleAdmin {
		return nil, apperr.Authorization(apperr.ReasonRole, "access denied")
	}
	f := Filter{SubjectID: subjectID, Status: StatusApproved}
	if p.Role == auth.RoleTeacher {
		if !p.IsAssigned(subjectID) {
			return nil, apperr.Authorization(apperr.ReasonNotAssigned, "not assigned to this subject")
		}
		f.TeacherID = p.UserID
	}
	return s.store.List(ctx, f)
}
