package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/auth"
	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
	"github.com/safar/shopcraft/internal/pricing"
	"github.com/safar/shopcraft/internal/store"
)

type addToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	// Quantity defaults to 1 when omitted.
	Quantity *int `json:"quantity" binding:"omitempty,min=1,max=1000"`
}

type updateCartRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=1000"`
}

type cartResponse struct {
	Items  []models.CartItem `json:"items"`
	Totals pricing.Totals    `json:"totals"`
}

// hideForeignLine reports another user's line as missing so the API does
// not reveal which line ids exist.
func hideForeignLine(err error) error {
	if errors.Is(err, database.ErrCartLineForbidden) {
		return database.ErrCartLineNotFound
	}
	return err
}

func (h *Handler) GetCart(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	items, err := store.GetCart(c.Request.Context(), h.db, principal.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	preview := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		preview = append(preview, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			UnitPrice: item.Product.Price,
			Quantity:  item.Quantity,
		})
	}

	totals, err := h.pricing.Preview(preview)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if items == nil {
		items = []models.CartItem{}
	}
	c.JSON(http.StatusOK, cartResponse{Items: items, Totals: totals})
}

func (h *Handler) AddToCart(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	var req addToCartRequest
	if !h.bindJSON(c, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	line, err := store.AddToCart(c.Request.Context(), h.db, principal.UserID, req.ProductID, quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, line)
}

func (h *Handler) UpdateCartLine(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	lineID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req updateCartRequest
	if !h.bindJSON(c, &req) {
		return
	}

	line, err := store.UpdateCartQuantity(c.Request.Context(), h.db, principal.UserID, lineID, req.Quantity)
	if err != nil {
		h.respondError(c, hideForeignLine(err))
		return
	}

	c.JSON(http.StatusOK, line)
}

func (h *Handler) RemoveCartLine(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	lineID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := store.RemoveCartLine(c.Request.Context(), h.db, principal.UserID, lineID); err != nil {
		h.respondError(c, hideForeignLine(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": true})
}

func (h *Handler) ClearCart(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	removed, err := store.ClearCart(c.Request.Context(), h.db, principal.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
