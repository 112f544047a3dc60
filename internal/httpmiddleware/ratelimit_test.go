package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(limiter *SimpleTokenBucket) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limiter.GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r *gin.Engine, path string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:12345"
	r.ServeHTTP(w, req)
	return w.Code
}

func TestBucketExhausts(t *testing.T) {
	r := newLimitedRouter(NewSimpleTokenBucket(3, 3))

	for i := 0; i < 3; i++ {
		if code := get(r, "/ping"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, code)
		}
	}
	if code := get(r, "/ping"); code != http.StatusTooManyRequests {
		t.Fatalf("over-limit request: status = %d, want 429", code)
	}
}

func TestSkipPathsNeverLimited(t *testing.T) {
	r := newLimitedRouter(NewSimpleTokenBucket(1, 1, "/healthz"))

	if code := get(r, "/ping"); code != http.StatusOK {
		t.Fatalf("first ping: %d", code)
	}
	for i := 0; i < 5; i++ {
		if code := get(r, "/healthz"); code != http.StatusOK {
			t.Fatalf("healthz %d: status = %d", i, code)
		}
	}
	if code := get(r, "/ping"); code != http.StatusTooManyRequests {
		t.Fatalf("ping after exhaustion: status = %d, want 429", code)
	}
}

func TestZeroCapacityDefaultsToRate(t *testing.T) {
	l := NewSimpleTokenBucket(0, 7)
	if l.capacity != 7 {
		t.Fatalf("capacity = %d, want 7", l.capacity)
	}
}
