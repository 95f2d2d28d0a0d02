package router

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/vexa-ai/billing/internal/api/v1"
	"github.com/vexa-ai/billing/internal/rest/middleware"
)

// Handlers groups the HTTP handlers the router mounts
type Handlers struct {
	Health  *v1.HealthHandler
	Webhook *v1.WebhookHandler
	Billing *v1.BillingHandler
}

func NewHandlers(
	health *v1.HealthHandler,
	webhook *v1.WebhookHandler,
	billing *v1.BillingHandler,
) Handlers {
	return Handlers{
		Health:  health,
		Webhook: webhook,
		Billing: billing,
	}
}

func SetupRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.ErrorHandler())

	router.GET("/", handlers.Health.Health)

	// Alias matching the public webhook URL registered with Stripe
	router.POST("/webhook/stripe", handlers.Webhook.HandleStripeWebhook)

	v1Group := router.Group("/v1")
	{
		v1Group.POST("/stripe/webhook", handlers.Webhook.HandleStripeWebhook)
		v1Group.POST("/stripe/resolve-url", handlers.Billing.ResolveBillingURL)
		v1Group.POST("/portal/session", handlers.Billing.CreatePortalSession)
		v1Group.POST("/trials/api-key", handlers.Billing.CreateAPIKeyTrial)
		v1Group.GET("/stats", handlers.Billing.GetStats)
		v1Group.GET("/pricing", handlers.Billing.GetPricing)
	}

	return router
}
