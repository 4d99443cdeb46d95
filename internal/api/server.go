package api

import (
	"context"
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/safar/shopcraft/internal/auth"
	"github.com/safar/shopcraft/internal/checkout"
	"github.com/safar/shopcraft/internal/models"
	"github.com/safar/shopcraft/internal/payment"
	"github.com/safar/shopcraft/internal/pricing"
	"go.uber.org/zap"
)

type Checkouter interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	Status(ctx context.Context, reference string) (*payment.Charge, error)
}

type AttemptFinder interface {
	GetAttempt(ctx context.Context, idOrReference string) (*models.PaymentAttempt, error)
}

type Options struct {
	DB          *sql.DB
	Checkout    Checkouter
	Attempts    AttemptFinder
	Pricing     *pricing.Calculator
	Tokens      *auth.TokenManager
	Logger      *zap.Logger
	CORSOrigins []string
}

type Handler struct {
	db       *sql.DB
	checkout Checkouter
	attempts AttemptFinder
	pricing  *pricing.Calculator
	tokens   *auth.TokenManager
	logger   *zap.Logger
}

func NewRouter(opts Options) (*gin.Engine, error) {
	registerValidators()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{
		db:       opts.DB,
		checkout: opts.Checkout,
		attempts: opts.Attempts,
		pricing:  opts.Pricing,
		tokens:   opts.Tokens,
		logger:   logger.Named("api"),
	}

	corsMiddleware, err := newCORS(opts.CORSOrigins)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(recovery(h.logger), requestLogger(h.logger), corsMiddleware)
	router.NoRoute(h.notFound)

	router.GET("/healthz", h.Health)
	h.registerRoutes(router.Group("/api"))

	return router, nil
}

func (h *Handler) registerRoutes(api *gin.RouterGroup) {
	authed := auth.RequireAuth(h.tokens)
	admin := auth.RequireAdmin()

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.Register)
		authRoutes.POST("/login", h.Login)
		authRoutes.GET("/me", authed, h.Me)
	}

	products := api.Group("/products")
	{
		products.GET("", h.ListProducts)
		products.GET("/:id", h.GetProduct)
		products.POST("", authed, admin, h.CreateProduct)
		products.PUT("/:id", authed, admin, h.UpdateProduct)
		products.DELETE("/:id", authed, admin, h.DeleteProduct)
		products.PUT("/:id/stock", authed, admin, h.UpdateStock)
	}

	cart := api.Group("/cart", authed)
	{
		cart.GET("", h.GetCart)
		cart.POST("", h.AddToCart)
		cart.PUT("/:id", h.UpdateCartLine)
		cart.DELETE("/:id", h.RemoveCartLine)
		cart.DELETE("", h.ClearCart)
	}

	api.POST("/checkout", authed, h.Checkout)
	api.GET("/payments/:reference", authed, h.PaymentStatus)

	orders := api.Group("/orders", authed)
	{
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
		orders.PUT("/:id/status", admin, h.UpdateOrderStatus)
	}

	wishlist := api.Group("/wishlist", authed)
	{
		wishlist.GET("", h.ListWishlist)
		wishlist.GET("/:productId", h.InWishlist)
		wishlist.POST("/:productId", h.AddToWishlist)
		wishlist.DELETE("/:productId", h.RemoveFromWishlist)
	}

	adminRoutes := api.Group("/admin", authed, admin)
	{
		adminRoutes.GET("/stats", h.Stats)
		adminRoutes.GET("/users", h.ListUsers)
		adminRoutes.GET("/reconciliation", h.ListReconciliation)
	}
}
