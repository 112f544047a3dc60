// Package attendance implements the attendance core: the enrollment
// authorization check and the one-record-per-day deduplication engine.
package attendance

import "time"

// Mode says how a record was written.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Status of a day's attendance.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLeave   Status = "leave"
)

// ValidStatus reports whether s is one of the allowed values.
func ValidStatus(s Status) bool {
	return s == StatusPresent || s == StatusAbsent || s == StatusLeave
}

// Record is one student's attendance for one subject on one calendar day.
type Record struct {
	ID        string    `json:"_id"`
	StudentID string    `json:"studentId"`
	SubjectID string    `json:"subjectId"`
	Day       time.Time `json:"-"`
	MarkedAt  time.Time `json:"date"`
	MarkedBy  Mode      `json:"markedBy"`
	Status    Status    `json:"status"`
}

// View is a record joined with the names listings render.
type View struct {
	Record
	StudentName string `json:"studentName"`
	StudentRoll string `json:"studentRollNumber"`
	SubjectName string `json:"subjectName"`
	SubjectCode string `json:"subjectCode"`
}

// DayWindow returns the half-open interval [midnight, next midnight)
// containing t, computed in loc.
func DayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
