// Package httpapi wires the HTTP surface: routing, middleware, and the
// handlers that translate requests into service calls.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/enrollment"
	"classtrack/internal/faceclient"
	"classtrack/internal/httpmiddleware"
	"classtrack/internal/metrics"
	"classtrack/internal/settings"
	"classtrack/internal/student"
	"classtrack/internal/subject"
	"classtrack/internal/user"
)

// Server holds every dependency the handlers use.
type Server struct {
	Users       *user.Service
	UserRepo    *user.Repository
	Students    *student.Service
	StudentRepo *student.Repository
	Subjects    *subject.Repository
	Enrollments *enrollment.Service
	Attendance  *attendance.Service
	AttRepo     *attendance.Repository
	Settings    *settings.Store
	Faces       *faceclient.Client
	Log         *zap.Logger

	JWTSigningKey string
	JWTIssuer     string
	UploadDir     string
	RateLimit     int
	Health        func(c *gin.Context)
}

// Router builds the gin engine with the full middleware chain and all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(s.RateLimit, s.RateLimit, "/healthz", "/metrics").GinMiddleware())

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if s.Health != nil {
		r.GET("/healthz", s.Health)
	} else {
		r.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	api := r.Group("/api")
	api.POST("/auth/login", s.login)
	api.POST("/students/register", s.registerStudent)

	authed := api.Group("", auth.Middleware(s.JWTSigningKey, s.JWTIssuer, s.Users))

	authed.GET("/auth/me", s.me)

	authed.GET("/students", s.listStudents)
	authed.DELETE("/students/:id", s.deleteStudent)
	authed.PUT("/students/:id/reset-password", s.resetStudentPassword)
	authed.GET("/students/:id/attendance", s.studentAttendance)
	authed.GET("/students/:id/attendance/course/:subjectId", s.studentAttendance)

	authed.POST("/teachers/register", s.registerTeacher)
	authed.GET("/teachers", s.listTeachers)
	authed.PUT("/teachers/:id/assign-subjects", s.assignSubjects)
	authed.PUT("/teachers/:id/reset-password", s.resetStaffPassword)
	authed.GET("/teachers/my-subjects", s.mySubjects)
	authed.GET("/teachers/attendance", s.teacherAttendance)
	authed.POST("/admins/register", s.registerAdmin)

	authed.GET("/subjects", s.listSubjects)
	authed.POST("/subjects", s.createSubject)
	authed.GET("/subjects/with-teachers", s.subjectsWithTeachers)

	authed.GET("/settings", s.getSettings)
	authed.PUT("/settings", s.updateSettings)

	authed.POST("/enrollments", s.requestEnrollment)
	authed.GET("/enrollments", s.listEnrollments)
	authed.GET("/enrollments/student", s.myEnrollments)
	authed.PUT("/enrollments/:id", s.reviewEnrollment)
	authed.GET("/enrollments/course/:subjectId", s.courseStudents)

	authed.POST("/attendance/mark", s.markAttendance)
	authed.POST("/attendance/bulk", s.bulkMarkAttendance)
	authed.GET("/attendance/all", s.listAttendance)
	authed.PUT("/attendance/:id", s.editAttendance)
	authed.DELETE("/attendance/:id", s.deleteAttendance)
	authed.GET("/attendance/export", s.exportAttendance)
	authed.POST("/attendance/recognize-live", s.recognizeLive)
	authed.POST("/attendance/recognize", s.recognizeSingle)

	authed.GET("/dashboard", s.dashboardSummary)

	return r
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
