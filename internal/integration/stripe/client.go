package stripe

import (
	"github.com/stripe/stripe-go/v82"
	"github.com/vexa-ai/billing/internal/config"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/logger"
)

// Client wraps the Stripe SDK client together with the credentials it was
// built from. It is constructed once at startup and passed explicitly to
// every component that talks to Stripe; nothing reads a package-level key.
type Client struct {
	sc     *stripe.Client
	config config.StripeConfig
	logger *logger.Logger
}

// NewClient builds a Stripe client from static configuration
func NewClient(cfg *config.Configuration, logger *logger.Logger) (*Client, error) {
	if cfg.Stripe.SecretKey == "" {
		return nil, ierr.NewError("stripe secret key is not configured").
			WithHint("Set BILLING_STRIPE_SECRETKEY or stripe.secret_key in config").
			Mark(ierr.ErrValidation)
	}
	return &Client{
		sc:     stripe.NewClient(cfg.Stripe.SecretKey, nil),
		config: cfg.Stripe,
		logger: logger,
	}, nil
}

// API exposes the underlying SDK client
func (c *Client) API() *stripe.Client {
	return c.sc
}

// WebhookSecret returns the endpoint signing secret used to verify inbound
// event signatures
func (c *Client) WebhookSecret() string {
	return c.config.WebhookSecret
}
