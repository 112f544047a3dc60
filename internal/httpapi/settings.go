package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classtrack/internal/auth"
)

func (s *Server) getSettings(c *gin.Context) {
	if _, ok := principal(c); !ok {
		return
	}
	st, err := s.Settings.Get(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": st})
}

func (s *Server) updateSettings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admins only"})
		return
	}
	var req struct {
		AllowManualAttendance *bool `json:"allowManualAttendance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AllowManualAttendance == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "allowManualAttendance boolean is required"})
		return
	}
	st, err := s.Settings.SetManualAllowed(c.Request.Context(), *req.AllowManualAttendance)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Settings updated", "settings": st})
}
