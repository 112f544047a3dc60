package httpapi

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classtrack/internal/apperr"
	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/faceclient"
	"classtrack/internal/metrics"
)

// decodeFrame strips an optional data URL prefix and decodes the base64 body.
func decodeFrame(image string) ([]byte, error) {
	if idx := strings.Index(image, ","); idx >= 0 && strings.HasPrefix(image, "data:") {
		image = image[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		return nil, apperr.Validation("invalid base64 image data")
	}
	if len(data) == 0 {
		return nil, apperr.Validation("empty image")
	}
	return data, nil
}

func upstreamErr(err error) error {
	class := faceclient.Classify(err)
	switch class {
	case apperr.UpstreamRefused:
		return apperr.Upstream(class, err, "face recognition service is not running")
	case apperr.UpstreamTimeout:
		return apperr.Upstream(class, err, "face recognition service timed out")
	default:
		return apperr.Upstream(class, err, "face recognition failed")
	}
}

// faceResult is one face of a live frame, enriched with the attendance write
// it triggered.
type faceResult struct {
	StudentID     string             `json:"studentId,omitempty"`
	Name          string             `json:"name,omitempty"`
	RollNumber    string             `json:"rollNumber,omitempty"`
	Confidence    float64            `json:"confidence"`
	BBox          [4]float64         `json:"bbox"`
	Recognized    bool               `json:"recognized"`
	AlreadyMarked bool               `json:"alreadyMarked,omitempty"`
	Attendance    *attendance.Record `json:"attendance,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// recognizeLive proxies one camera frame to the recognition service and
// auto-marks every recognized, enrolled student for the session's subject.
func (s *Server) recognizeLive(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin && p.Role != auth.RoleTeacher {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}
	var req struct {
		Image     string `json:"image" binding:"required"`
		SubjectID string `json:"subjectId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image and subjectId are required"})
		return
	}
	if p.Role == auth.RoleTeacher && !p.IsAssigned(req.SubjectID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not assigned to this subject", "reason": "not_assigned"})
		return
	}

	frame, err := decodeFrame(req.Image)
	if err != nil {
		fail(c, err)
		return
	}

	start := time.Now()
	live, err := s.Faces.RecognizeLive(c.Request.Context(), frame)
	metrics.ObserveRecognition(time.Since(start))
	if err != nil {
		metrics.RecognitionErrors.WithLabelValues(faceclient.Classify(err)).Inc()
		fail(c, upstreamErr(err))
		return
	}

	faces := make([]faceResult, 0, len(live.Results))
	for _, sight := range live.Results {
		faces = append(faces, s.handleSighting(c.Request.Context(), p, req.SubjectID, sight))
	}
	c.JSON(http.StatusOK, gin.H{"faces": faces, "count": len(faces)})
}

// handleSighting turns one detected face into its response entry, marking
// attendance for recognized students. Per-face failures never abort the frame.
func (s *Server) handleSighting(ctx context.Context, p auth.Principal, subjectID string, sight faceclient.Sighting) faceResult {
	out := faceResult{
		StudentID:  sight.StudentID,
		Confidence: sight.Confidence,
		BBox:       sight.BBox,
		Recognized: sight.Recognized,
	}
	if !sight.Recognized || sight.StudentID == "" {
		return out
	}

	if st, err := s.StudentRepo.Get(ctx, sight.StudentID); err == nil && st != nil {
		out.Name = st.Name
		out.RollNumber = st.RollNumber
	}

	res, err := s.Attendance.Mark(ctx, p, attendance.MarkRequest{
		StudentID: sight.StudentID,
		SubjectID: subjectID,
		Mode:      attendance.ModeAuto,
	})
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			out.Error = ae.Msg
		} else {
			s.Log.Warn("auto mark failed",
				zap.String("student_id", sight.StudentID), zap.Error(err))
			out.Error = "attendance write failed"
		}
		return out
	}
	out.Attendance = &res.Record
	out.AlreadyMarked = res.Outcome == attendance.OutcomeNoop
	return out
}

// recognizeSingle identifies the best match in a photo and, when a subject is
// given, marks that student present.
func (s *Server) recognizeSingle(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleAdmin && p.Role != auth.RoleTeacher {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}
	var req struct {
		Image     string `json:"image" binding:"required"`
		SubjectID string `json:"subjectId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}
	frame, err := decodeFrame(req.Image)
	if err != nil {
		fail(c, err)
		return
	}

	start := time.Now()
	live, err := s.Faces.RecognizeLive(c.Request.Context(), frame)
	metrics.ObserveRecognition(time.Since(start))
	if err != nil {
		metrics.RecognitionErrors.WithLabelValues(faceclient.Classify(err)).Inc()
		fail(c, upstreamErr(err))
		return
	}

	var best *faceclient.Sighting
	for i := range live.Results {
		sight := &live.Results[i]
		if !sight.Recognized || sight.StudentID == "" {
			continue
		}
		if best == nil || sight.Confidence > best.Confidence {
			best = sight
		}
	}
	if best == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recognized face in image"})
		return
	}

	out := s.handleSightingForSingle(c, p, req.SubjectID, *best)
	if out == nil {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSightingForSingle(c *gin.Context, p auth.Principal, subjectID string, best faceclient.Sighting) gin.H {
	st, err := s.StudentRepo.Get(c.Request.Context(), best.StudentID)
	if err != nil {
		fail(c, err)
		return nil
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recognized student no longer exists"})
		return nil
	}

	out := gin.H{
		"student":    st,
		"confidence": best.Confidence,
	}
	if subjectID == "" {
		return out
	}
	res, err := s.Attendance.Mark(c.Request.Context(), p, attendance.MarkRequest{
		StudentID: best.StudentID,
		SubjectID: subjectID,
		Mode:      attendance.ModeAuto,
	})
	if err != nil {
		fail(c, err)
		return nil
	}
	out["attendance"] = res.Record
	out["alreadyMarked"] = res.Outcome == attendance.OutcomeNoop
	return out
}
