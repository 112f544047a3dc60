package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type staticProvider struct{ p Principal }

func (s staticProvider) Resolve(_ context.Context, userID string) (Principal, error) {
	if userID != s.p.UserID {
		return Principal{}, http.ErrNoCookie
	}
	return s.p, nil
}

func newAuthedRouter(t *testing.T, provider Provider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Middleware("secret", "classtrack", provider), func(c *gin.Context) {
		p, ok := FromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": p.Role})
	})
	return r
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	provider := staticProvider{p: Principal{UserID: "u1", Role: RoleTeacher}}
	r := newAuthedRouter(t, provider)

	token, _, err := Issue("u1", RoleTeacher, "classtrack", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestMiddlewareRejectsMissingOrBadToken(t *testing.T) {
	provider := staticProvider{p: Principal{UserID: "u1", Role: RoleTeacher}}
	r := newAuthedRouter(t, provider)

	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}

func TestMiddlewareRejectsUnknownUser(t *testing.T) {
	provider := staticProvider{p: Principal{UserID: "someone-else"}}
	r := newAuthedRouter(t, provider)

	token, _, err := Issue("u1", RoleTeacher, "classtrack", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
