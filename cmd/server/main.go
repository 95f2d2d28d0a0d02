package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vexa-ai/billing/internal/admin"
	v1 "github.com/vexa-ai/billing/internal/api/v1"
	"github.com/vexa-ai/billing/internal/config"
	"github.com/vexa-ai/billing/internal/domain/provider"
	"github.com/vexa-ai/billing/internal/domain/user"
	"github.com/vexa-ai/billing/internal/httpclient"
	"github.com/vexa-ai/billing/internal/integration/stripe"
	"github.com/vexa-ai/billing/internal/integration/stripe/webhook"
	"github.com/vexa-ai/billing/internal/logger"
	"github.com/vexa-ai/billing/internal/router"
	"github.com/vexa-ai/billing/internal/service"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Admin store
			admin.NewClient,
			func(c *admin.Client) user.Repository { return c },

			// Stripe integration
			stripe.NewClient,
			stripe.NewProvider,
			func(p *stripe.Provider) provider.Provider { return p },
			stripe.NewCatalogService,
			stripe.NewBillingService,
			stripe.NewTrialService,

			// Services
			newEntitlementService,
			service.NewStatsService,
			service.NewPricingService,

			// Webhook dispatch
			webhook.NewHandler,

			// HTTP handlers
			v1.NewHealthHandler,
			v1.NewWebhookHandler,
			v1.NewBillingHandler,
			router.NewHandlers,
			router.SetupRouter,
		),
		fx.Invoke(startAPIServer),
	)

	app.Run()
}

func newEntitlementService(p provider.Provider, cfg *config.Configuration, log *logger.Logger) service.EntitlementService {
	return service.NewEntitlementService(p, cfg.Billing.CancellationPolicy(), log)
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}
