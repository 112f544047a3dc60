package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
)

type fakeStore struct {
	records      map[string]*Record
	failInserts  int
	insertCalls  int
	updateCalls  int
	deletedIDs   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*Record{}}
}

func (f *fakeStore) FindInWindow(_ context.Context, studentID, subjectID string, from, to time.Time) (*Record, error) {
	for _, r := range f.records {
		if r.StudentID == studentID && r.SubjectID == subjectID &&
			!r.MarkedAt.Before(from) && r.MarkedAt.Before(to) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Insert(_ context.Context, rec Record) error {
	f.insertCalls++
	if f.failInserts > 0 {
		f.failInserts--
		return ErrDuplicateDay
	}
	for _, r := range f.records {
		if r.StudentID == rec.StudentID && r.SubjectID == rec.SubjectID && r.Day.Equal(rec.Day) {
			return ErrDuplicateDay
		}
	}
	cp := rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeStore) Update(_ context.Context, rec Record) error {
	f.updateCalls++
	cp := rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*Record, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	delete(f.records, id)
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

type fakeApprovals struct {
	approved map[string]bool
}

func (f *fakeApprovals) HasApproved(_ context.Context, studentID, subjectID string) (bool, error) {
	return f.approved[studentID+"/"+subjectID], nil
}

type fakeFlag struct{ allowed bool }

func (f *fakeFlag) ManualAllowed(context.Context) (bool, error) { return f.allowed, nil }

func newTestService(store *fakeStore, approvals *fakeApprovals, flag *fakeFlag) *Service {
	svc := NewService(store, approvals, flag, time.UTC)
	base := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	seq := 0
	svc.newID = func() string {
		seq++
		return string(rune('a' + seq - 1))
	}
	return svc
}

func approvedFor(pairs ...string) *fakeApprovals {
	m := map[string]bool{}
	for _, p := range pairs {
		m[p] = true
	}
	return &fakeApprovals{approved: m}
}

var (
	teacher = auth.Principal{UserID: "t1", Role: auth.RoleTeacher, AssignedSubjects: []string{"math"}}
	admin   = auth.Principal{UserID: "adm", Role: auth.RoleAdmin}
)

func TestMarkAutoThenAutoIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/math"), &fakeFlag{allowed: true})

	first, err := svc.Mark(context.Background(), teacher, MarkRequest{
		StudentID: "s1", SubjectID: "math", Mode: ModeAuto,
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.Outcome != OutcomeCreated {
		t.Fatalf("first mark outcome = %s, want created", first.Outcome)
	}

	second, err := svc.Mark(context.Background(), teacher, MarkRequest{
		StudentID: "s1", SubjectID: "math", Mode: ModeAuto,
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.Outcome != OutcomeNoop {
		t.Fatalf("second mark outcome = %s, want noop", second.Outcome)
	}
	if second.Record.ID != first.Record.ID {
		t.Fatalf("noop should return the existing record, got %s want %s", second.Record.ID, first.Record.ID)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.records))
	}
}

func TestMarkAutoForcesPresent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/math"), &fakeFlag{allowed: true})

	res, err := svc.Mark(context.Background(), teacher, MarkRequest{
		StudentID: "s1", SubjectID: "math", Mode: ModeAuto, Status: StatusAbsent,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Record.Status != StatusPresent {
		t.Fatalf("auto mark status = %s, want present", res.Record.Status)
	}
}

func TestManualOverwritesExisting(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/math"), &fakeFlag{allowed: true})

	first, err := svc.Mark(context.Background(), teacher, MarkRequest{
		StudentID: "s1", SubjectID: "math", Mode: ModeAuto,
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.Mark(context.Background(), teacher, MarkRequest{
		StudentID: "s1", SubjectID: "math", Mode: ModeManual, Status: StatusAbsent,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeUpdated {
		t.Fatalf("outcome = %s, want updated", res.Outcome)
	}
	if res.Record.ID != first.Record.ID {
		t.Fatal("manual overwrite must keep the same record id")
	}
	if res.Record.Status != StatusAbsent || res.Record.MarkedBy != ModeManual {
		t.Fatalf("record not overwritten: %+v", res.Record)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.records))
	}
}

func TestEnrollmentGateBlocksBothModes(t *testing.T) {
	for _, mode := range []Mode{ModeAuto, ModeManual} {
		store := newFakeStore()
		svc := newTestService(store, approvedFor(), &fakeFlag{allowed: true})

		_, err := svc.Mark(context.Background(), teacher, MarkRequest{
			StudentID: "s1", SubjectID: "math", Mode: mode,
		})
		ae, ok := apperr.As(err)
		if !ok || ae.Kind != apperr.KindAuthorization || ae.Reason != apperr.ReasonNotEnrolled {
			t.Fatalf("mode %s: expected not_enrolled authorization error, got %v", mode, err)
		}
		if store.insertCalls != 0 {
			t.Fatalf("mode %s: gate must run before any write", mode)
		}
	}
}

func TestManualDisabledBlocksTeacherNotAdmin(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/math"), &fakeFlag{allowed: false})

	_, err := svc.Mark(context.Background(), teacher, MarkRequest{
		StudentID: "s1", SubjectID: "math", Mode: ModeManual,
	})
	ae, ok := apperr.As(err)
	if !ok || ae.Reason != apperr.ReasonManualDisabled {
		t.Fatalf("expected manual_disabled, got %v", err)
	}

	if _, err := svc.Mark(context.Background(), admin, MarkRequest{
		StudentID: "s1", SubjectID: "math", Mode: ModeManual,
	}); err != nil {
		t.Fatalf("admin should bypass the manual flag, got %v", err)
	}
}

func TestManualRequiresAssignment(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/physics"), &fakeFlag{allowed: true})

	_, err := svc.Mark(context.Background(), teacher, MarkRequest{
		StudentID: "s1", SubjectID: "physics", Mode: ModeManual,
	})
	ae, ok := apperr.As(err)
	if !ok || ae.Reason != apperr.ReasonNotAssigned {
		t.Fatalf("expected not_assigned, got %v", err)
	}
}

func TestStudentCannotMarkManual(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/math"), &fakeFlag{allowed: true})

	studentPrincipal := auth.Principal{UserID: "u9", Role: auth.RoleStudent, StudentID: "s1"}
	_, err := svc.Mark(context.Background(), studentPrincipal, MarkRequest{
		StudentID: "s1", SubjectID: "math", Mode: ModeManual,
	})
	ae, ok := apperr.As(err)
	if !ok || ae.Reason != apperr.ReasonRole {
		t.Fatalf("expected role error, got %v", err)
	}
}

func TestDuplicateRaceFallsThroughToExisting(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/math"), &fakeFlag{allowed: true})

	// Simulate losing the insert race: the unique index rejects the insert and
	// a concurrent writer's record shows up on re-read.
	winner := Record{
		ID: "winner", StudentID: "s1", SubjectID: "math",
		Day:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		MarkedAt: time.Date(2026, 3, 10, 9, 29, 0, 0, time.UTC),
		MarkedBy: ModeAuto, Status: StatusPresent,
	}
	raceStore := &racingStore{fakeStore: store, winner: winner}

	svc.records = raceStore
	res, err := svc.MarkOrUpdate(context.Background(), "s1", "math", nil, ModeAuto, StatusPresent)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeNoop || res.Record.ID != "winner" {
		t.Fatalf("expected noop on the winner's record, got %+v", res)
	}
}

// racingStore reports no existing record until an insert fails, then exposes
// the winner.
type racingStore struct {
	*fakeStore
	winner   Record
	inserted bool
}

func (r *racingStore) FindInWindow(ctx context.Context, studentID, subjectID string, from, to time.Time) (*Record, error) {
	if r.inserted {
		cp := r.winner
		return &cp, nil
	}
	return nil, nil
}

func (r *racingStore) Insert(context.Context, Record) error {
	r.inserted = true
	return ErrDuplicateDay
}

func TestDayBoundarySeparatesRecords(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/math"), &fakeFlag{allowed: true})

	lateNight := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	justAfter := time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC)

	first, err := svc.MarkOrUpdate(context.Background(), "s1", "math", &lateNight, ModeAuto, StatusPresent)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.MarkOrUpdate(context.Background(), "s1", "math", &justAfter, ModeAuto, StatusPresent)
	if err != nil {
		t.Fatal(err)
	}
	if first.Outcome != OutcomeCreated || second.Outcome != OutcomeCreated {
		t.Fatalf("marks across midnight must both create: %s, %s", first.Outcome, second.Outcome)
	}
	if len(store.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(store.records))
	}
}

func TestBulkMarkPartialFailure(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/math", "s2/math"), &fakeFlag{allowed: true})

	res, err := svc.BulkMark(context.Background(), teacher, "math", time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), []BulkItem{
		{StudentID: "s1", Status: StatusPresent},
		{StudentID: "s2", Status: StatusAbsent},
		{StudentID: "s3", Status: StatusPresent}, // not enrolled
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(res.Results))
	}
	if len(res.Errors) != 1 || res.Errors[0].StudentID != "s3" {
		t.Fatalf("errors = %+v, want single s3 failure", res.Errors)
	}
	if len(store.records) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(store.records))
	}
}

func TestBulkMarkTeacherOnly(t *testing.T) {
	svc := newTestService(newFakeStore(), approvedFor("s1/math"), &fakeFlag{allowed: true})

	_, err := svc.BulkMark(context.Background(), admin, "math", time.Now(), []BulkItem{{StudentID: "s1"}})
	ae, ok := apperr.As(err)
	if !ok || ae.Reason != apperr.ReasonRole {
		t.Fatalf("expected role error for non-teacher bulk, got %v", err)
	}
}

func TestBulkMarkBlockedWhenManualDisabled(t *testing.T) {
	svc := newTestService(newFakeStore(), approvedFor("s1/math"), &fakeFlag{allowed: false})

	_, err := svc.BulkMark(context.Background(), teacher, "math", time.Now(), []BulkItem{{StudentID: "s1"}})
	ae, ok := apperr.As(err)
	if !ok || ae.Reason != apperr.ReasonManualDisabled {
		t.Fatalf("expected manual_disabled, got %v", err)
	}
}

func TestEditMovesDayAndRejectsCollision(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/math"), &fakeFlag{allowed: true})

	res, err := svc.Mark(context.Background(), teacher, MarkRequest{
		StudentID: "s1", SubjectID: "math", Mode: ModeManual, Status: StatusPresent,
	})
	if err != nil {
		t.Fatal(err)
	}

	newDate := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	rec, err := svc.Edit(context.Background(), teacher, res.Record.ID, EditRequest{Date: &newDate})
	if err != nil {
		t.Fatal(err)
	}
	wantDay := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	if !rec.Day.Equal(wantDay) {
		t.Fatalf("day = %v, want %v", rec.Day, wantDay)
	}
}

func TestEditUnknownRecord(t *testing.T) {
	svc := newTestService(newFakeStore(), approvedFor(), &fakeFlag{allowed: true})
	status := StatusLeave
	_, err := svc.Edit(context.Background(), admin, "missing", EditRequest{Status: &status})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveScopedToAssignedSubjects(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, approvedFor("s1/math"), &fakeFlag{allowed: true})

	res, err := svc.Mark(context.Background(), teacher, MarkRequest{
		StudentID: "s1", SubjectID: "math", Mode: ModeManual,
	})
	if err != nil {
		t.Fatal(err)
	}

	outsider := auth.Principal{UserID: "t2", Role: auth.RoleTeacher, AssignedSubjects: []string{"physics"}}
	err = svc.Remove(context.Background(), outsider, res.Record.ID)
	ae, ok := apperr.As(err)
	if !ok || ae.Reason != apperr.ReasonNotAssigned {
		t.Fatalf("expected not_assigned, got %v", err)
	}

	if err := svc.Remove(context.Background(), teacher, res.Record.ID); err != nil {
		t.Fatalf("assigned teacher delete failed: %v", err)
	}
	if len(store.deletedIDs) != 1 {
		t.Fatal("record was not deleted")
	}
}

func TestMarkValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), approvedFor("s1/math"), &fakeFlag{allowed: true})

	cases := []MarkRequest{
		{SubjectID: "math", Mode: ModeAuto},
		{StudentID: "s1", Mode: ModeAuto},
		{StudentID: "s1", SubjectID: "math", Mode: "magic"},
		{StudentID: "s1", SubjectID: "math", Mode: ModeManual, Status: "vacation"},
	}
	for i, req := range cases {
		if _, err := svc.Mark(context.Background(), teacher, req); !apperr.IsKind(err, apperr.KindValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestErrDuplicateDayIsSentinel(t *testing.T) {
	wrapped := errors.New("wrapped")
	if errors.Is(wrapped, ErrDuplicateDay) {
		t.Fatal("unrelated errors must not match the sentinel")
	}
}
