package export

import (
	"testing"
	"time"

	"classtrack/internal/attendance"
)

func TestAttendanceWorkbook(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := []attendance.View{
		{
			Record: attendance.Record{
				ID: "a1", StudentID: "s1", SubjectID: "sub1",
				Day: day, MarkedAt: day.Add(9 * time.Hour),
				MarkedBy: attendance.ModeAuto, Status: attendance.StatusPresent,
			},
			StudentName: "Asha Verma", StudentRoll: "21CS001",
			SubjectName: "Data Structures", SubjectCode: "CS201",
		},
	}

	wb, err := AttendanceWorkbook("Data Structures", rows)
	if err != nil {
		t.Fatal(err)
	}

	sheet := wb.File.GetSheetName(0)
	if sheet != "Data Structures" {
		t.Fatalf("sheet = %q", sheet)
	}
	if v, _ := wb.File.GetCellValue(sheet, "A1"); v != "Date" {
		t.Fatalf("A1 = %q", v)
	}
	if v, _ := wb.File.GetCellValue(sheet, "B2"); v != "Asha Verma" {
		t.Fatalf("B2 = %q", v)
	}
	if v, _ := wb.File.GetCellValue(sheet, "F2"); v != "present" {
		t.Fatalf("F2 = %q", v)
	}
	if v, _ := wb.File.GetCellValue(sheet, "A2"); v != "2026-03-10" {
		t.Fatalf("A2 = %q", v)
	}
}

func TestSheetNameSanitized(t *testing.T) {
	wb, err := AttendanceWorkbook("Maths: Algebra/Geometry [Sec A] and a very long tail", nil)
	if err != nil {
		t.Fatal(err)
	}
	name := wb.File.GetSheetName(0)
	if len(name) > 31 {
		t.Fatalf("sheet name too long: %q", name)
	}
	for _, bad := range []byte{':', '/', '[', ']'} {
		for i := 0; i < len(name); i++ {
			if name[i] == bad {
				t.Fatalf("sheet name contains %q: %q", bad, name)
			}
		}
	}
}

func TestFilename(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	got := Filename("CS201", from, to)
	want := "attendance_CS201_2026-03-01_2026-03-31.xlsx"
	if got != want {
		t.Fatalf("filename = %q, want %q", got, want)
	}
}
