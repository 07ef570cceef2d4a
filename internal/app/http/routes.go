package routes

import (
	"net/http"

	"checkout-server/internal/api/admin"
	"checkout-server/internal/api/billing"
	"checkout-server/internal/api/landing"
	stripewebhooks "checkout-server/internal/api/stripewebhook"
	"checkout-server/internal/app/http/middleware"
	"checkout-server/internal/infra/metrics"

	"github.com/gin-gonic/gin"
)

// Handlers bundles everything RegisterRoutes mounts. Admin routes are only
// mounted when both Admin and AdminJWTSecret are set.
type Handlers struct {
	Landing        *landing.Handler
	Billing        *billing.Handler
	Webhook        *stripewebhooks.Handler
	Admin          *admin.Handler
	AdminJWTSecret string
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.POST("/webhook", h.Webhook.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		metrics.Write(c.Writer)
	})

	r.GET("/", h.Landing.Index)
	r.GET("/success", h.Landing.Success)
	r.GET("/cancel", h.Landing.Cancel)
	r.POST("/create-checkout-session", h.Billing.CreateCheckoutSession)

	if h.Admin != nil && h.AdminJWTSecret != "" {
		adminGroup := r.Group("/admin")
		adminGroup.Use(middleware.AuthMiddleware(h.AdminJWTSecret), middleware.RequireRole("admin"))
		adminGroup.GET("/events", h.Admin.ListEvents)
	}
}
