package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/integration/stripe"
	"github.com/vexa-ai/billing/internal/integration/stripe/webhook"
	"github.com/vexa-ai/billing/internal/logger"
)

// WebhookHandler verifies inbound Stripe notifications and hands them to the
// dispatcher. Verification failures are client errors; nothing downstream
// runs on an unverified payload.
type WebhookHandler struct {
	client     *stripe.Client
	dispatcher *webhook.Handler
	logger     *logger.Logger
}

func NewWebhookHandler(
	client *stripe.Client,
	dispatcher *webhook.Handler,
	logger *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		client:     client,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleStripeWebhook handles POST /v1/stripe/webhook and its public alias
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Could not read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	secret := h.client.WebhookSecret()
	if signature == "" || secret == "" {
		c.Error(ierr.NewError("missing webhook secret or signature").
			WithHint("Webhook signature verification is required").
			Mark(ierr.ErrValidation))
		return
	}

	event, err := stripewebhook.ConstructEventWithOptions(payload, signature, secret, stripewebhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.logger.Errorw("Stripe webhook verification failed", "error", err)
		c.Error(ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.dispatcher.HandleEvent(c.Request.Context(), &event)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
