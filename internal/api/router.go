package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/gateway"
	"github.com/akylbek/payment-system/hutko-gateway/internal/handlers"
	"github.com/akylbek/payment-system/hutko-gateway/internal/telemetry"
)

type RouterDeps struct {
	Registry *gateway.Registry
	Orders   handlers.OrderReader
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware(deps.Logger))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "hutko-gateway"})
	})

	gatewayHandler := handlers.NewGatewayHandler(deps.Registry, deps.Logger)
	gateways := r.Group("/api/gateways")
	gateways.GET("", gatewayHandler.List)
	gateways.POST("/:id/callback", gatewayHandler.Callback)
	gateways.GET("/:id/callback", gatewayHandler.Callback)
	gateways.POST("/:id/checkout", gatewayHandler.Checkout)
	gateways.GET("/:id/statuses", gatewayHandler.Statuses)

	if card, ok := deps.Registry.Get(gateway.CardID); ok {
		orderHandler := handlers.NewOrderPaymentHandler(deps.Orders, card, deps.Logger)
		r.GET("/orders/:id/payment", orderHandler.GetPayment)
	}

	return r
}
