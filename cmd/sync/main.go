// Command sync pushes the static pricing configuration to Stripe, creating
// or archiving the product and tiered price as needed. Safe to run
// repeatedly.
package main

import (
	"context"
	"os"
	"time"

	"github.com/vexa-ai/billing/internal/config"
	"github.com/vexa-ai/billing/internal/integration/stripe"
	"github.com/vexa-ai/billing/internal/logger"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		logger.L.Fatalf("failed to load configuration: %v", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		logger.L.Fatalf("failed to initialize logger: %v", err)
	}

	client, err := stripe.NewClient(cfg, log)
	if err != nil {
		log.Fatalf("failed to initialize Stripe client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	catalog := stripe.NewCatalogService(client, cfg, log)
	if err := catalog.Sync(ctx); err != nil {
		log.Errorf("catalog sync failed: %v", err)
		os.Exit(1)
	}
}
