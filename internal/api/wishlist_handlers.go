package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/auth"
	"github.com/safar/shopcraft/internal/store"
)

func (h *Handler) ListWishlist(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	products, err := store.ListWishlist(c.Request.Context(), h.db, principal.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": products})
}

func (h *Handler) InWishlist(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}

	exists, err := store.InWishlist(c.Request.Context(), h.db, principal.UserID, productID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"in_wishlist": exists})
}

func (h *Handler) AddToWishlist(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}

	added, err := store.AddToWishlist(c.Request.Context(), h.db, principal.UserID, productID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (h *Handler) RemoveFromWishlist(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}

	removed, err := store.RemoveFromWishlist(c.Request.Context(), h.db, principal.UserID, productID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
