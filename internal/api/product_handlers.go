package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/apperr"
	"github.com/safar/shopcraft/internal/models"
	"github.com/safar/shopcraft/internal/store"
	"github.com/shopspring/decimal"
)

type createProductRequest struct {
	SKU         string               `json:"sku" binding:"required,max=64"`
	Name        string               `json:"name" binding:"required,max=200"`
	Description string               `json:"description" binding:"required"`
	Category    string               `json:"category" binding:"required,max=100"`
	ImageURL    string               `json:"image_url" binding:"omitempty,url"`
	Price       decimal.Decimal      `json:"price" binding:"required,gt=0"`
	Stock       *int                 `json:"stock" binding:"required,min=0"`
	Status      models.ProductStatus `json:"status" binding:"omitempty,product_status"`
}

type updateProductRequest struct {
	SKU         *string               `json:"sku" binding:"omitempty,min=1,max=64"`
	Name        *string               `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string               `json:"description" binding:"omitempty,min=1"`
	Category    *string               `json:"category" binding:"omitempty,min=1,max=100"`
	ImageURL    *string               `json:"image_url" binding:"omitempty,url"`
	Price       *decimal.Decimal      `json:"price" binding:"omitempty,gt=0"`
	Stock       *int                  `json:"stock" binding:"omitempty,min=0"`
	Status      *models.ProductStatus `json:"status" binding:"omitempty,product_status"`
}

type updateStockRequest struct {
	Stock   *int `json:"stock" binding:"required,min=0"`
	Version int  `json:"version" binding:"required,min=1"`
}

func (h *Handler) ListProducts(c *gin.Context) {
	page, pageSize, ok := h.pageParams(c)
	if !ok {
		return
	}

	status := models.ProductStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		h.respondError(c, apperr.Newf(apperr.InvalidArgument, "invalid status %q", status))
		return
	}

	result, err := store.ListProducts(c.Request.Context(), h.db, store.ProductFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Category: c.Query("category"),
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	product, err := store.GetProduct(c.Request.Context(), h.db, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.Status == "" {
		req.Status = models.ProductStatusActive
	}

	product, err := store.CreateProduct(c.Request.Context(), h.db, store.CreateProductParams{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Stock:       *req.Stock,
		Status:      req.Status,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req updateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	product, err := store.UpdateProduct(c.Request.Context(), h.db, id, store.UpdateProductParams{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Stock:       req.Stock,
		Status:      req.Status,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := store.DeleteProduct(c.Request.Context(), h.db, id); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) UpdateStock(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req updateStockRequest
	if !h.bindJSON(c, &req) {
		return
	}

	product, err := store.UpdateStockOptimistic(c.Request.Context(), h.db, id, *req.Stock, req.Version)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}
