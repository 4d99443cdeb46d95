package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/auth"
	"github.com/safar/shopcraft/internal/checkout"
	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
	"github.com/shopspring/decimal"
)

type checkoutRequest struct {
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method" binding:"required_without=PaymentReference,max=255"`
	// ExpectedTotal is the preview total the client displayed.
	ExpectedTotal *decimal.Decimal `json:"expected_total" binding:"omitempty,gte=0"`
	// PaymentReference resumes a checkout that failed after payment.
	PaymentReference string `json:"payment_reference" binding:"omitempty,max=255"`
}

func (h *Handler) Checkout(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	var req checkoutRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), checkout.Request{
		UserID:           principal.UserID,
		ShippingAddress:  req.ShippingAddress,
		PaymentMethod:    req.PaymentMethod,
		ExpectedTotal:    req.ExpectedTotal,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	// A replayed reference answers like the original checkout; the body's
	// existing flag tells them apart.
	c.JSON(http.StatusOK, result)
}

// PaymentStatus lets a client resolve an ambiguous checkout by asking the
// gateway directly. Non-admins only see their own attempts.
func (h *Handler) PaymentStatus(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	reference := c.Param("reference")

	if !principal.IsAdmin() {
		attempt, err := h.attempts.GetAttempt(c.Request.Context(), reference)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if attempt.UserID != principal.UserID {
			h.respondError(c, database.ErrAttemptNotFound)
			return
		}
	}

	charge, err := h.checkout.Status(c.Request.Context(), reference)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, charge)
}
