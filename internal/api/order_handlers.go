package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/apperr"
	"github.com/safar/shopcraft/internal/auth"
	"github.com/safar/shopcraft/internal/models"
	"github.com/safar/shopcraft/internal/store"
)

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required,order_status"`
}

// ListOrders pages a customer's own orders by keyset cursor. Admins get
// every order as an offset page, optionally filtered by status.
func (h *Handler) ListOrders(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	if principal.IsAdmin() {
		page, pageSize, ok := h.pageParams(c)
		if !ok {
			return
		}
		status := models.OrderStatus(c.Query("status"))
		if status != "" && !status.Valid() {
			h.respondError(c, apperr.Newf(apperr.InvalidArgument, "invalid status %q", status))
			return
		}

		result, err := store.ListOrders(c.Request.Context(), h.db, store.OrderFilter{
			Status:   status,
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	limit, ok := h.queryInt(c, "limit", 0)
	if !ok {
		return
	}

	result, err := store.ListOrdersCursor(c.Request.Context(), h.db, principal.UserID, c.Query("cursor"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetOrder(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	order, err := store.GetOrder(c.Request.Context(), h.db, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if order.UserID != principal.UserID && !principal.IsAdmin() {
		h.respondError(c, apperr.New(apperr.Forbidden, "order belongs to another user"))
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	order, err := store.UpdateOrderStatus(c.Request.Context(), h.db, id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}
