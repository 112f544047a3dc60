package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/subject"
	"classtrack/internal/user"
)

func (s *Server) registerTeacher(c *gin.Context) {
	s.registerStaff(c, auth.RoleTeacher)
}

func (s *Server) registerAdmin(c *gin.Context) {
	s.registerStaff(c, auth.RoleAdmin)
}

func (s *Server) registerStaff(c *gin.Context, role string) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admins only"})
		return
	}
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	u, err := s.Users.RegisterStaff(c.Request.Context(), req.Name, req.Email, req.Password, role)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Account created", "user": u})
}

func (s *Server) listTeachers(c *gin.Context) {
	if _, ok := principal(c); !ok {
		return
	}
	teachers, err := s.UserRepo.ListTeachers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if teachers == nil {
		teachers = []user.User{}
	}
	c.JSON(http.StatusOK, gin.H{"teachers": teachers})
}

func (s *Server) assignSubjects(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admins only"})
		return
	}
	var req struct {
		SubjectIDs []string `json:"subjectIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subjectIds array is required"})
		return
	}
	teacherID := c.Param("id")
	teacher, err := s.UserRepo.FindByID(c.Request.Context(), teacherID)
	if err != nil {
		fail(c, err)
		return
	}
	if teacher == nil || teacher.Role != auth.RoleTeacher {
		c.JSON(http.StatusNotFound, gin.H{"error": "teacher not found"})
		return
	}
	if err := s.UserRepo.AssignSubjects(c.Request.Context(), teacherID, req.SubjectIDs); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subjects assigned", "subjectIds": orEmpty(req.SubjectIDs)})
}

// mySubjects returns the subjects the acting teacher is assigned to,
// resolved to full subject rows.
func (s *Server) mySubjects(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleTeacher {
		c.JSON(http.StatusForbidden, gin.H{"error": "teachers only"})
		return
	}
	all, err := s.Subjects.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	mine := []subject.Subject{}
	for _, sub := range all {
		if p.IsAssigned(sub.ID) {
			mine = append(mine, sub)
		}
	}
	c.JSON(http.StatusOK, gin.H{"subjects": mine})
}

// teacherAttendance returns the acting teacher's records grouped by subject,
// the shape the teacher dashboard renders.
func (s *Server) teacherAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleTeacher {
		c.JSON(http.StatusForbidden, gin.H{"error": "teachers only"})
		return
	}
	assigned := p.AssignedSubjects
	if assigned == nil {
		assigned = []string{}
	}
	records, err := s.AttRepo.ListAll(c.Request.Context(), assigned)
	if err != nil {
		fail(c, err)
		return
	}

	type group struct {
		SubjectID   string            `json:"subjectId"`
		SubjectName string            `json:"subjectName"`
		SubjectCode string            `json:"subjectCode"`
		Attendance  []attendance.View `json:"attendance"`
	}
	index := map[string]int{}
	groups := []group{}
	for _, rec := range records {
		i, ok := index[rec.SubjectID]
		if !ok {
			i = len(groups)
			index[rec.SubjectID] = i
			groups = append(groups, group{
				SubjectID:   rec.SubjectID,
				SubjectName: rec.SubjectName,
				SubjectCode: rec.SubjectCode,
			})
		}
		groups[i].Attendance = append(groups[i].Attendance, rec)
	}
	c.JSON(http.StatusOK, gin.H{"subjects": groups})
}

func (s *Server) resetStaffPassword(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admins only"})
		return
	}
	var req struct {
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "newPassword is required"})
		return
	}
	if err := s.Users.ResetPassword(c.Request.Context(), c.Param("id"), req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}
