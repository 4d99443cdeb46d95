package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/apperr"
	"github.com/safar/shopcraft/internal/config"
	"github.com/safar/shopcraft/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *TokenManager {
	return NewTokenManager(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})
}

func TestTokenRoundTrip(t *testing.T) {
	m := newManager()
	user := &models.User{ID: 17, Role: models.RoleAdmin}

	token, expiresAt, err := m.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	principal, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(17), principal.UserID)
	assert.True(t, principal.IsAdmin())
}

func TestParseRejectsBadTokens(t *testing.T) {
	m := newManager()
	token, _, err := m.Issue(&models.User{ID: 1, Role: models.RoleUser})
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager(config.AuthConfig{JWTSecret: "other", TokenTTL: time.Hour})
		_, err := other.Parse(token)
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})

	t.Run("expired", func(t *testing.T) {
		expired := newManager()
		expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := expired.Parse(token)
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse("not-a-token")
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)

	assert.NoError(t, CheckPassword(hash, "s3cret!"))
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(CheckPassword(hash, "wrong")))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager()

	router := gin.New()
	router.GET("/me", RequireAuth(m), func(c *gin.Context) {
		principal, _ := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": principal.UserID})
	})
	router.GET("/admin", RequireAuth(m), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	userToken, _, err := m.Issue(&models.User{ID: 5, Role: models.RoleUser})
	require.NoError(t, err)
	adminToken, _, err := m.Issue(&models.User{ID: 6, Role: models.RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic " + userToken, http.StatusUnauthorized},
		{"invalid token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"valid user", "/me", "Bearer " + userToken, http.StatusOK},
		{"user on admin route", "/admin", "Bearer " + userToken, http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + adminToken, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
