package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Provider resolves a verified user id into a Principal. The user package
// implements this against the users table; tests supply fakes.
type Provider interface {
	Resolve(ctx context.Context, userID string) (Principal, error)
}

// Middleware enforces bearer JWT tokens and attaches the resolved Principal
// to the request context.
func Middleware(signingKey, issuer string, provider Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		principal, err := provider.Resolve(c.Request.Context(), claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token - user not found"})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// FromContext returns the Principal attached by Middleware.
func FromContext(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// SetPrincipal attaches a principal directly; used by handler tests.
func SetPrincipal(c *gin.Context, p Principal) { c.Set(principalKey, p) }
