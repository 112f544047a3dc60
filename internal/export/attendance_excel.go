// Package export builds spreadsheet reports from attendance listings.
package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"classtrack/internal/attendance"
)

// Workbook wraps the spreadsheet so callers can stream or save it.
type Workbook struct {
	File *excelize.File
}

// AttendanceWorkbook renders one sheet of attendance rows for a subject.
// Rows are expected pre-sorted by day then student name.
func AttendanceWorkbook(subjectName string, rows []attendance.View) (*Workbook, error) {
	f := excelize.NewFile()
	sheet := sanitizeSheetName(subjectName)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := []string{"Date", "Student", "Roll Number", "Subject", "Code", "Status", "Marked By", "Marked At"}
	for col, h := range header {
		cell := fmt.Sprintf("%s1", colName(col+1))
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("set cell %s: %w", cell, err)
		}
	}

	for i, v := range rows {
		r := i + 2
		values := []string{
			v.Day.Format("2006-01-02"),
			v.StudentName,
			v.StudentRoll,
			v.SubjectName,
			v.SubjectCode,
			string(v.Status),
			string(v.MarkedBy),
			v.MarkedAt.Format("15:04:05"),
		}
		for c, val := range values {
			cell := fmt.Sprintf("%s%d", colName(c+1), r)
			if err := f.SetCellStr(sheet, cell, val); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	end := colName(len(header)) + "1"
	_ = f.SetCellStyle(sheet, "A1", end, bold)
	_ = f.AutoFilter(sheet, "A1:"+end, nil)

	// Column widths from header and the first rows, capped to stay readable.
	for c := 1; c <= len(header); c++ {
		maxim := len(header[c-1])
		limit := len(rows)
		if limit > 50 {
			limit = 50
		}
		for r := 0; r < limit; r++ {
			v := rows[r]
			var l int
			switch c {
			case 2:
				l = len(v.StudentName)
			case 4:
				l = len(v.SubjectName)
			default:
				l = maxim
			}
			if l > maxim {
				maxim = l
			}
		}
		w := float64(maxim) * 1.1
		if w < 12 {
			w = 12
		}
		if w > 40 {
			w = 40
		}
		_ = f.SetColWidth(sheet, colName(c), colName(c), w)
	}

	return &Workbook{File: f}, nil
}

// Filename builds a download name like "attendance_CS101_2026-01-01_2026-01-31.xlsx".
func Filename(subjectCode string, from, to time.Time) string {
	base := fmt.Sprintf("attendance_%s_%s_%s.xlsx",
		subjectCode, from.Format("2006-01-02"), to.Format("2006-01-02"))
	return sanitizeFileName(base)
}

func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}

var invalidFileRe = regexp.MustCompile(`[\\/:*?"<>|]+`)

func sanitizeFileName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), " ")
	return invalidFileRe.ReplaceAllString(s, "_")
}

// Excel sheet names cap at 31 characters and reject a handful of characters.
func sanitizeSheetName(s string) string {
	s = invalidFileRe.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.ReplaceAll(s, "[", "(")
	s = strings.ReplaceAll(s, "]", ")")
	if s == "" {
		s = "Attendance"
	}
	if len(s) > 31 {
		s = s[:31]
	}
	return s
}
