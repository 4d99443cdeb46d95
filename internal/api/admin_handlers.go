package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/apperr"
	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
	"github.com/safar/shopcraft/internal/store"
	"go.uber.org/zap"
)

func (h *Handler) Stats(c *gin.Context) {
	stats, err := store.GetStats(c.Request.Context(), h.db)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListUsers(c *gin.Context) {
	page, pageSize, ok := h.pageParams(c)
	if !ok {
		return
	}

	result, err := store.ListUsers(c.Request.Context(), h.db, page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

var validOutcomes = map[models.AttemptOutcome]bool{
	models.AttemptPending:       true,
	models.AttemptPaymentFailed: true,
	models.AttemptCommitted:     true,
	models.AttemptCommitFailed:  true,
}

// ListReconciliation exposes the payment attempt log. Filtering on
// commit_failed yields the captured payments that have no order.
func (h *Handler) ListReconciliation(c *gin.Context) {
	page, pageSize, ok := h.pageParams(c)
	if !ok {
		return
	}

	outcome := models.AttemptOutcome(c.Query("outcome"))
	if outcome != "" && !validOutcomes[outcome] {
		h.respondError(c, apperr.Newf(apperr.InvalidArgument, "invalid outcome %q", outcome))
		return
	}

	result, err := store.ListAttempts(c.Request.Context(), h.db, store.AttemptFilter{
		Outcome:  outcome,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Health(c *gin.Context) {
	if err := database.Ping(c.Request.Context(), h.db); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
