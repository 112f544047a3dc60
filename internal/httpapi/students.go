package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"classtrack/internal/auth"
	"classtrack/internal/student"
)

// registerStudent handles the public self-registration form: multipart fields
// plus the enrollment video the worker trains on.
func (s *Server) registerStudent(c *gin.Context) {
	name := c.PostForm("name")
	roll := c.PostForm("rollNumber")
	email := c.PostForm("email")
	password := c.PostForm("password")
	confirm := c.PostForm("confirmPassword")

	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video is required"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		ext = ".webm"
	}
	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		fail(c, err)
		return
	}
	videoPath := filepath.Join(s.UploadDir,
		fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext))
	if err := c.SaveUploadedFile(file, videoPath); err != nil {
		fail(c, err)
		return
	}

	st, err := s.Students.Register(c.Request.Context(), student.RegisterInput{
		Name:            name,
		RollNumber:      roll,
		Email:           email,
		Password:        password,
		ConfirmPassword: confirm,
		VideoPath:       videoPath,
	})
	if err != nil {
		// Registration failed, the saved upload is orphaned.
		_ = os.Remove(videoPath)
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Student registered successfully. Face training has been queued.",
		"student": st,
	})
}

func (s *Server) listStudents(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin && p.Role != auth.RoleTeacher {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}
	students, err := s.StudentRepo.Search(c.Request.Context(), c.Query("search"))
	if err != nil {
		fail(c, err)
		return
	}
	if students == nil {
		students = []student.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (s *Server) deleteStudent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admins only"})
		return
	}
	res, err := s.Students.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Student deleted along with %d attendance and %d enrollment records",
			res.AttendanceRemoved, res.EnrollmentsRemoved),
		"attendanceRemoved":  res.AttendanceRemoved,
		"enrollmentsRemoved": res.EnrollmentsRemoved,
	})
}

func (s *Server) resetStudentPassword(c *gin.Context) {
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
	if err := s.Students.ResetPassword(c.Request.Context(), c.Param("id"), req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

// studentAttendance lists one student's records. Students may only read their
// own; "me" resolves to the caller's student profile.
func (s *Server) studentAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if id == "me" {
		id = p.StudentID
	}
	if p.Role == auth.RoleStudent && id != p.StudentID {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student profile not found"})
		return
	}
	subjectID := c.Param("subjectId")
	if subjectID == "" {
		subjectID = c.Query("subjectId")
	}
	records, err := s.AttRepo.ListByStudent(c.Request.Context(), id, subjectID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": orEmpty(records)})
}
