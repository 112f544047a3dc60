package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
	"classtrack/internal/metrics"
	"classtrack/internal/observability"
)

// fail maps an application error to its HTTP shape. Authorization errors
// carry a reason field so clients can distinguish "not enrolled" from
// "manual disabled"; upstream errors carry the errorType the operator UI
// switches on. Anything unclassified is a 500.
func fail(c *gin.Context, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		metrics.HandlerErrors.Inc()
		observability.CaptureErr(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	switch ae.Kind {
	case apperr.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": ae.Msg})
	case apperr.KindAuthorization:
		body := gin.H{"error": ae.Msg}
		if ae.Reason != "" {
			body["reason"] = ae.Reason
		}
		c.JSON(http.StatusForbidden, body)
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": ae.Msg})
	case apperr.KindUpstream:
		status := http.StatusInternalServerError
		if ae.Reason == apperr.UpstreamTimeout {
			status = http.StatusGatewayTimeout
		}
		metrics.HandlerErrors.Inc()
		c.JSON(status, gin.H{"error": ae.Msg, "errorType": ae.Reason})
	default:
		metrics.HandlerErrors.Inc()
		observability.CaptureErr(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// orEmpty keeps JSON list fields as [] instead of null.
func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// principal pulls the authenticated principal or responds 401. Routes behind
// the auth middleware always have one; the check guards against misregistered
// routes.
func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return p, ok
}
