package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"coffeeshop/internal/handler"
	"coffeeshop/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	KHQRHandler      *handler.KHQRHandler
	CheckoutHandler  *handler.CheckoutHandler
	OrderHandler     *handler.OrderHandler
	IdempotencyStore middleware.ResponseStore
	AllowedOrigins   []string
	NewRelicApp      *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// KHQR routes used directly by the storefront.
		bakong := v1.Group("/bakong")
		{
			bakong.POST("/generate-khqr", deps.KHQRHandler.GenerateKHQR)
			bakong.POST("/verify", deps.KHQRHandler.VerifyKHQR)
			bakong.POST("/decode", deps.KHQRHandler.DecodeKHQR)
			bakong.GET("/status", deps.KHQRHandler.Status)
		}

		// Checkout routes.
		checkout := v1.Group("/checkout/bakong")
		{
			checkout.POST("", deps.CheckoutHandler.StartCheckout)
			checkout.GET("/:checkoutID", deps.CheckoutHandler.GetCheckout)
			checkout.POST("/:checkoutID/regenerate", deps.CheckoutHandler.RegenerateCheckout)
			checkout.DELETE("/:checkoutID", deps.CheckoutHandler.CancelCheckout)
		}

		// Order routes.
		orders := v1.Group("/orders")
		orders.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore))
		{
			orders.POST("", deps.OrderHandler.CreateOrder)
			orders.GET("/:id", deps.OrderHandler.GetOrder)
		}
	}

	return router
}
