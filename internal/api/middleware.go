package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/apperr"
	"github.com/safar/shopcraft/internal/auth"
	"go.uber.org/zap"
)

func newCORS(origins []string) (gin.HandlerFunc, error) {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// A wildcard cannot be combined with credentials.
	wildcard := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			wildcard = true
		}
	}
	if wildcard {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cors config: %w", err)
	}
	return cors.New(cfg), nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if principal, ok := auth.PrincipalFrom(c); ok {
			fields = append(fields, zap.Int64("user_id", principal.UserID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
			"kind":  apperr.Internal.String(),
		})
	})
}

func (h *Handler) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found", "kind": apperr.NotFound.String()})
}
