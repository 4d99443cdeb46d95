package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/apperr"
)

const principalKey = "auth.principal"

func abort(c *gin.Context, status int, kind apperr.Kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "kind": kind.String()})
}

// RequireAuth accepts "Authorization: Bearer <token>" and stores the
// principal on the gin context.
func RequireAuth(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abort(c, http.StatusUnauthorized, apperr.Unauthenticated, "authorization header is missing")
			return
		}

		principal, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			abort(c, http.StatusUnauthorized, apperr.Unauthenticated, ErrInvalidToken.Message)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, apperr.Unauthenticated, "authentication required")
			return
		}
		if !principal.IsAdmin() {
			abort(c, http.StatusForbidden, apperr.Forbidden, "admin access required")
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}
