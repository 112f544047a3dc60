package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/export"
)

// parseDate accepts both date-only and RFC3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (s *Server) markAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		StudentID string `json:"studentId"`
		SubjectID string `json:"subjectId"`
		Date      string `json:"date"`
		MarkedBy  string `json:"markedBy"`
		Status    string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	mreq := attendance.MarkRequest{
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
		Mode:      attendance.Mode(req.MarkedBy),
		Status:    attendance.Status(req.Status),
	}
	if req.MarkedBy == "" {
		mreq.Mode = attendance.ModeManual
	}
	if req.Date != "" {
		when, err := parseDate(req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		mreq.When = &when
	}

	res, err := s.Attendance.Mark(c.Request.Context(), p, mreq)
	if err != nil {
		fail(c, err)
		return
	}
	switch res.Outcome {
	case attendance.OutcomeCreated:
		c.JSON(http.StatusCreated, gin.H{"message": "Attendance marked", "attendance": res.Record})
	case attendance.OutcomeNoop:
		c.JSON(http.StatusOK, gin.H{
			"message":       "Attendance already marked for today",
			"alreadyMarked": true,
			"attendance":    res.Record,
		})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Attendance updated", "attendance": res.Record})
	}
}

func (s *Server) bulkMarkAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		SubjectID string                `json:"subjectId"`
		Date      string                `json:"date"`
		Students  []attendance.BulkItem `json:"students"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SubjectID == "" || len(req.Students) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subjectId and a students array are required"})
		return
	}
	date := time.Now()
	if req.Date != "" {
		parsed, err := parseDate(req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		date = parsed
	}

	res, err := s.Attendance.BulkMark(c.Request.Context(), p, req.SubjectID, date, req.Students)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Attendance recorded for %d students, %d failed",
			len(res.Results), len(res.Errors)),
		"results": res.Results,
		"errors":  res.Errors,
	})
}

// listAttendance returns records scoped by role: admins see everything,
// teachers only their assigned subjects.
func (s *Server) listAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var subjectIDs []string
	switch p.Role {
	case auth.RoleAdmin:
		subjectIDs = nil
	case auth.RoleTeacher:
		subjectIDs = p.AssignedSubjects
		if subjectIDs == nil {
			subjectIDs = []string{}
		}
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}
	if q := c.Query("subjectId"); q != "" {
		if p.Role == auth.RoleTeacher && !p.IsAssigned(q) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not assigned to this subject", "reason": "not_assigned"})
			return
		}
		subjectIDs = []string{q}
	}
	records, err := s.AttRepo.ListAll(c.Request.Context(), subjectIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": orEmpty(records)})
}

func (s *Server) editAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		StudentID *string `json:"studentId"`
		SubjectID *string `json:"subjectId"`
		Date      *string `json:"date"`
		MarkedBy  *string `json:"markedBy"`
		Status    *string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	edit := attendance.EditRequest{
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
	}
	if req.Date != nil {
		when, err := parseDate(*req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		edit.Date = &when
	}
	if req.MarkedBy != nil {
		mode := attendance.Mode(*req.MarkedBy)
		edit.MarkedBy = &mode
	}
	if req.Status != nil {
		status := attendance.Status(*req.Status)
		edit.Status = &status
	}

	rec, err := s.Attendance.Edit(c.Request.Context(), p, c.Param("id"), edit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance updated", "attendance": rec})
}

func (s *Server) deleteAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := s.Attendance.Remove(c.Request.Context(), p, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance deleted"})
}

// exportAttendance streams an xlsx of one subject's records over a date range.
func (s *Server) exportAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin && p.Role != auth.RoleTeacher {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}
	subjectID := c.Query("subjectId")
	if subjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subjectId is required"})
		return
	}
	if p.Role == auth.RoleTeacher && !p.IsAssigned(subjectID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not assigned to this subject", "reason": "not_assigned"})
		return
	}

	to := time.Now()
	from := to.AddDate(0, -1, 0)
	if v := c.Query("from"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
		to = parsed
	}

	sub, err := s.Subjects.Get(c.Request.Context(), subjectID)
	if err != nil {
		fail(c, err)
		return
	}
	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "subject not found"})
		return
	}

	rows, err := s.AttRepo.ListRange(c.Request.Context(), subjectID, from, to)
	if err != nil {
		fail(c, err)
		return
	}
	wb, err := export.AttendanceWorkbook(sub.Name, rows)
	if err != nil {
		fail(c, err)
		return
	}

	filename := export.Filename(sub.Code, from, to)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := wb.File.Write(c.Writer); err != nil {
		s.Log.Warn("export write failed", zap.Error(err))
	}
}
