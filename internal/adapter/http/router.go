package http

import (
	"github.com/aq2208/gorder-scalapay/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-scalapay/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *PaymentHandler, th *TokenHandler, authz *middleware.Authz) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())
	r.Use(middleware.Logging(logging.New("http")))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", th.IssueToken)

	// provider redirect target; the browser is always redirected onwards
	r.GET("/payments/scalapay", authz.Session(), h.Callback)

	v1 := r.Group("/v1/payments/scalapay")
	{
		v1.POST("/checkout", authz.Require("payments.write"), h.Checkout)
		v1.POST("/refunds", authz.Require("payments.refund"), h.Refund)
		v1.GET("/orders/:id/status", authz.Require("payments.read"), h.OrderStatus)
	}

	return r
}
