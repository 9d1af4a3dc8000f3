package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rider-order-sync/internal/logger"
	"rider-order-sync/internal/metrics"
	"rider-order-sync/internal/middleware"
	"rider-order-sync/internal/service"
)

// NewRouter wires the agent's HTTP API.
func NewRouter(ctl *OrderController, authService *service.AuthService, m *metrics.Registry, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	// Public routes
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})))

	// Protected routes
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(authService))

	auth.GET("/orders", ctl.ListOrders)
	auth.GET("/orders/home", ctl.HomeOrders)
	auth.GET("/orders/pending", ctl.PendingOrders)
	auth.GET("/orders/delivered", ctl.DeliveredOrders)
	auth.GET("/orders/stream", ctl.Stream)
	auth.POST("/orders/refresh", ctl.Refresh)
	auth.GET("/orders/:orderId", ctl.GetOrder)
	auth.PUT("/orders/:orderId/status", ctl.UpdateStatus)
	auth.POST("/scan", ctl.Scan)
	auth.GET("/profile", ctl.GetProfile)

	return r
}
