package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/apperr"
	"go.uber.org/zap"
)

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidArgument, apperr.EmptyCart, apperr.PricingFailed:
		return http.StatusBadRequest
	case apperr.Conflict, apperr.InvalidTransition, apperr.InsufficientStock, apperr.CommitFailed:
		return http.StatusConflict
	case apperr.PaymentFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body and aborts. Internal details never
// reach the client; CommitFailed keeps its reference and attempt id so the
// client can resume or quote them to support.
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	body := gin.H{"error": err.Error(), "kind": kind.String()}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if appErr.PaymentReference != "" {
			body["payment_reference"] = appErr.PaymentReference
		}
		if appErr.AttemptID != "" {
			body["attempt_id"] = appErr.AttemptID
		}
	}

	switch kind {
	case apperr.Internal:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		body["error"] = "internal server error"
	case apperr.CommitFailed:
		body["error"] = appErr.Message
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(statusForKind(kind), body)
}

func (h *Handler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, apperr.Wrap(apperr.InvalidArgument, err, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		h.respondError(c, apperr.Newf(apperr.InvalidArgument, "invalid %s %q", name, c.Param(name)))
		return 0, false
	}
	return id, true
}

// queryInt returns def when the parameter is absent and rejects values
// that are not integers.
func (h *Handler) queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		h.respondError(c, apperr.Newf(apperr.InvalidArgument, "invalid %s %q", name, raw))
		return 0, false
	}
	return value, true
}

func (h *Handler) pageParams(c *gin.Context) (int, int, bool) {
	page, ok := h.queryInt(c, "page", 1)
	if !ok {
		return 0, 0, false
	}
	pageSize, ok := h.queryInt(c, "page_size", 0)
	if !ok {
		return 0, 0, false
	}
	return page, pageSize, true
}
