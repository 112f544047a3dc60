package enrollment

import (
	"context"
	"testing"
	"time"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
	"classtrack/internal/subject"
	"classtrack/internal/user"
)

type fakeRepo struct {
	rows map[string]*Enrollment
	seq  int
}

func newFakeRepo() *fakeRepo { return &fakeRepo{rows: map[string]*Enrollment{}} }

func (f *fakeRepo) Insert(_ context.Context, e Enrollment) (Enrollment, error) {
	f.seq++
	e.ID = string(rune('0' + f.seq))
	e.RequestedAt = time.Now()
	cp := e
	f.rows[e.ID] = &cp
	return e, nil
}

func (f *fakeRepo) FindTriple(_ context.Context, studentID, subjectID, teacherID string) (*Enrollment, error) {
	for _, e := range f.rows {
		if e.StudentID == studentID && e.SubjectID == subjectID && e.TeacherID == teacherID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (*Enrollment, error) {
	e, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeRepo) Review(_ context.Context, id, status, reviewedBy string, at time.Time) error {
	e := f.rows[id]
	e.Status = status
	e.ReviewedBy = &reviewedBy
	e.ReviewedAt = &at
	return nil
}

func (f *fakeRepo) List(_ context.Context, filter Filter) ([]View, error) {
	var out []View
	for _, e := range f.rows {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.SubjectID != "" && e.SubjectID != filter.SubjectID {
			continue
		}
		if filter.TeacherID != "" && e.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		out = append(out, View{Enrollment: *e})
	}
	return out, nil
}

type fakeSubjects struct{ known map[string]bool }

func (f *fakeSubjects) Get(_ context.Context, id string) (*subject.Subject, error) {
	if !f.known[id] {
		return nil, nil
	}
	return &subject.Subject{ID: id, Name: "Subject " + id}, nil
}

type fakeTeachers struct {
	teachers map[string][]string // teacher id -> assigned subjects
}

func (f *fakeTeachers) FindByID(_ context.Context, id string) (*user.User, error) {
	if _, ok := f.teachers[id]; !ok {
		return nil, nil
	}
	return &user.User{ID: id, Role: auth.RoleTeacher, Name: "Teacher " + id}, nil
}

func (f *fakeTeachers) IsAssigned(_ context.Context, teacherID, subjectID string) (bool, error) {
	for _, s := range f.teachers[teacherID] {
		if s == subjectID {
			return true, nil
		}
	}
	return false, nil
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo,
		&fakeSubjects{known: map[string]bool{"math": true}},
		&fakeTeachers{teachers: map[string][]string{"t1": {"math"}}},
	)
}

var studentP = auth.Principal{UserID: "u1", Role: auth.RoleStudent, StudentID: "s1"}

func TestRequestCreatesPending(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	e, err := svc.Request(context.Background(), studentP, "math", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != StatusPending {
		t.Fatalf("status = %s, want pending", e.Status)
	}
	if e.StudentID != "s1" {
		t.Fatalf("studentID = %s", e.StudentID)
	}
}

func TestRequestRejectsDuplicateTriple(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	if _, err := svc.Request(context.Background(), studentP, "math", "t1"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Request(context.Background(), studentP, "math", "t1")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error on duplicate, got %v", err)
	}
}

func TestRequestRejectsUnassignedTeacher(t *testing.T) {
	svc := NewService(newFakeRepo(),
		&fakeSubjects{known: map[string]bool{"math": true, "art": true}},
		&fakeTeachers{teachers: map[string][]string{"t1": {"math"}}},
	)
	_, err := svc.Request(context.Background(), studentP, "art", "t1")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequestUnknownSubjectOrTeacher(t *testing.T) {
	svc := newTestService(newFakeRepo())

	if _, err := svc.Request(context.Background(), studentP, "ghost", "t1"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("unknown subject: got %v", err)
	}
	if _, err := svc.Request(context.Background(), studentP, "math", "ghost"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("unknown teacher: got %v", err)
	}
}

func TestReviewHappensExactlyOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	e, err := svc.Request(context.Background(), studentP, "math", "t1")
	if err != nil {
		t.Fatal(err)
	}

	reviewer := auth.Principal{UserID: "t1", Role: auth.RoleTeacher}
	approved, err := svc.Review(context.Background(), reviewer, e.ID, StatusApproved)
	if err != nil {
		t.Fatal(err)
	}
	if approved.Status != StatusApproved || approved.ReviewedBy == nil {
		t.Fatalf("review not stamped: %+v", approved)
	}

	// Second review of any kind must be rejected.
	if _, err := svc.Review(context.Background(), reviewer, e.ID, StatusRejected); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error on re-review, got %v", err)
	}
	if repo.rows[e.ID].Status != StatusApproved {
		t.Fatal("stored status must stay approved")
	}
}

func TestReviewScopedToAddressedTeacher(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	e, err := svc.Request(context.Background(), studentP, "math", "t1")
	if err != nil {
		t.Fatal(err)
	}

	other := auth.Principal{UserID: "t2", Role: auth.RoleTeacher}
	_, err = svc.Review(context.Background(), other, e.ID, StatusApproved)
	ae, ok := apperr.As(err)
	if !ok || ae.Reason != apperr.ReasonNotAssigned {
		t.Fatalf("expected not_assigned, got %v", err)
	}

	// Admins can review regardless of the addressed teacher.
	if _, err := svc.Review(context.Background(), auth.Principal{UserID: "a", Role: auth.RoleAdmin}, e.ID, StatusRejected); err != nil {
		t.Fatalf("admin review failed: %v", err)
	}
}

func TestReviewValidatesStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	e, _ := svc.Request(context.Background(), studentP, "math", "t1")

	reviewer := auth.Principal{UserID: "t1", Role: auth.RoleTeacher}
	if _, err := svc.Review(context.Background(), reviewer, e.ID, "maybe"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListForScopesTeachers(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	if _, err := svc.Request(context.Background(), studentP, "math", "t1"); err != nil {
		t.Fatal(err)
	}

	views, err := svc.ListFor(context.Background(), auth.Principal{UserID: "t2", Role: auth.RoleTeacher}, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 0 {
		t.Fatalf("t2 must not see t1's requests, got %d", len(views))
	}

	views, err = svc.ListFor(context.Background(), auth.Principal{UserID: "a", Role: auth.RoleAdmin}, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 {
		t.Fatalf("admin sees all, got %d", len(views))
	}
}
