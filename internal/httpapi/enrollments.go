package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classtrack/internal/enrollment"
)

func (s *Server) requestEnrollment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		SubjectID string `json:"subjectId"`
		TeacherID string `json:"teacherId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	e, err := s.Enrollments.Request(c.Request.Context(), p, req.SubjectID, req.TeacherID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Enrollment request submitted, awaiting teacher approval",
		"enrollment": e,
	})
}

func (s *Server) listEnrollments(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	views, err := s.Enrollments.ListFor(c.Request.Context(), p, enrollment.Filter{
		Status:    c.Query("status"),
		SubjectID: c.Query("subjectId"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": orEmpty(views)})
}

func (s *Server) myEnrollments(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	views, err := s.Enrollments.ListOwn(c.Request.Context(), p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": orEmpty(views)})
}

func (s *Server) reviewEnrollment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	e, err := s.Enrollments.Review(c.Request.Context(), p, c.Param("id"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Enrollment " + e.Status, "enrollment": e})
}

// courseStudents lists the approved roster of a subject for marking screens.
func (s *Server) courseStudents(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	views, err := s.Enrollments.ApprovedForCourse(c.Request.Context(), p, c.Param("subjectId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": orEmpty(views)})
}
