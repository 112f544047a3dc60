package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"classtrack/internal/attendance"
	"classtrack/internal/auth"
)

// dashboardSummary aggregates the numbers the admin landing page shows:
// headcounts, today's marks and the latest records.
func (s *Server) dashboardSummary(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin && p.Role != auth.RoleTeacher {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}
	ctx := c.Request.Context()

	students, err := s.AttRepo.CountStudents(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	subjects, err := s.Subjects.List(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	recent, err := s.AttRepo.Recent(ctx, 20)
	if err != nil {
		fail(c, err)
		return
	}

	today, _ := attendance.DayWindow(time.Now(), time.Local)
	markedToday, err := s.AttRepo.CountSince(ctx, today)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalStudents": students,
		"totalSubjects": len(subjects),
		"markedToday":   markedToday,
		"recent":        orEmpty(recent),
	})
}
