package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classtrack/internal/auth"
	"classtrack/internal/subject"
)

func (s *Server) listSubjects(c *gin.Context) {
	if _, ok := principal(c); !ok {
		return
	}
	subjects, err := s.Subjects.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if subjects == nil {
		subjects = []subject.Subject{}
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

func (s *Server) createSubject(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admins only"})
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and code are required"})
		return
	}
	sub, err := s.Subjects.Create(c.Request.Context(), req.Name, req.Code)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subject": sub})
}

// teacherRef is the compact teacher listing embedded in a subject.
type teacherRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// subjectsWithTeachers returns every subject with the teachers assigned to
// it, the listing students pick from when requesting enrollment.
func (s *Server) subjectsWithTeachers(c *gin.Context) {
	if _, ok := principal(c); !ok {
		return
	}
	subjects, err := s.Subjects.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	assignments, err := s.UserRepo.ListAssignments(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	bySubject := map[string][]teacherRef{}
	for _, a := range assignments {
		bySubject[a.SubjectID] = append(bySubject[a.SubjectID], teacherRef{
			ID: a.TeacherID, Name: a.TeacherName, Email: a.TeacherEmail,
		})
	}

	type entry struct {
		subject.Subject
		Teachers []teacherRef `json:"teachers"`
	}
	out := make([]entry, 0, len(subjects))
	for _, sub := range subjects {
		out = append(out, entry{Subject: sub, Teachers: orEmpty(bySubject[sub.ID])})
	}
	c.JSON(http.StatusOK, gin.H{"subjects": out})
}
