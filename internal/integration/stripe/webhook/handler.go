package webhook

import (
	"context"
	"encoding/json"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/vexa-ai/billing/internal/api/dto"
	"github.com/vexa-ai/billing/internal/domain/provider"
	"github.com/vexa-ai/billing/internal/domain/user"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/logger"
	"github.com/vexa-ai/billing/internal/service"
	"github.com/vexa-ai/billing/internal/types"
)

// Handler dispatches verified Stripe events. The event payload is used only
// to resolve which customer changed; the entitlement itself is always
// recomputed from the provider's live state, so replays and out-of-order
// deliveries converge to the same result.
type Handler struct {
	provider       provider.Provider
	entitlementSvc service.EntitlementService
	userRepo       user.Repository
	logger         *logger.Logger
}

func NewHandler(
	provider provider.Provider,
	entitlementSvc service.EntitlementService,
	userRepo user.Repository,
	logger *logger.Logger,
) *Handler {
	return &Handler{
		provider:       provider,
		entitlementSvc: entitlementSvc,
		userRepo:       userRepo,
		logger:         logger,
	}
}

// HandleEvent processes one verified Stripe event. Subscription lifecycle
// events propagate downstream failures so Stripe redelivers them; checkout
// completion acknowledges regardless because the subscription events for the
// same change will follow anyway.
func (h *Handler) HandleEvent(ctx context.Context, event *stripeapi.Event) (*dto.WebhookResponse, error) {
	eventType := types.WebhookEventType(event.Type)

	h.logger.Infow("processing Stripe webhook event",
		"event_id", event.ID,
		"event_type", eventType,
	)

	switch eventType {
	case types.WebhookEventTypeSubscriptionCreated,
		types.WebhookEventTypeSubscriptionUpdated,
		types.WebhookEventTypeSubscriptionDeleted:
		return h.handleSubscriptionEvent(ctx, event)
	case types.WebhookEventTypeCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)
	default:
		h.logger.Debugw("ignoring webhook event type", "event_type", eventType)
		return &dto.WebhookResponse{Received: true, Ignored: string(eventType)}, nil
	}
}

func (h *Handler) handleSubscriptionEvent(ctx context.Context, event *stripeapi.Event) (*dto.WebhookResponse, error) {
	var sub stripeapi.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid subscription payload in webhook event").
			WithReportableDetails(map[string]any{"event_id": event.ID}).
			Mark(ierr.ErrValidation)
	}

	h.logger.Infow("subscription event received",
		"event_type", event.Type,
		"subscription_id", sub.ID,
		"raw_status", sub.Status,
	)

	email := h.resolveSubscriptionEmail(ctx, &sub)
	if email == "" {
		// Without an email there is no user to update; acknowledge so the
		// provider does not retry an event we can never act on
		h.logger.Warnw("no email resolvable for subscription event, skipping",
			"event_id", event.ID,
			"subscription_id", sub.ID,
		)
		return &dto.WebhookResponse{Received: true, Error: "no email to map user"}, nil
	}

	if err := h.applyEntitlement(ctx, email); err != nil {
		return nil, err
	}
	return &dto.WebhookResponse{Received: true}, nil
}

func (h *Handler) handleCheckoutCompleted(ctx context.Context, event *stripeapi.Event) (*dto.WebhookResponse, error) {
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid checkout session payload in webhook event").
			WithReportableDetails(map[string]any{"event_id": event.ID}).
			Mark(ierr.ErrValidation)
	}

	if session.Subscription == nil {
		h.logger.Infow("checkout session has no subscription, skipping",
			"event_id", event.ID,
			"session_id", session.ID,
		)
		return &dto.WebhookResponse{Received: true}, nil
	}

	email := h.resolveCheckoutEmail(ctx, &session)
	if email == "" {
		h.logger.Warnw("no email resolvable for checkout session, skipping",
			"event_id", event.ID,
			"session_id", session.ID,
		)
		return &dto.WebhookResponse{Received: true, Error: "no email to map user"}, nil
	}

	// The subscription lifecycle events for this purchase arrive on their
	// own; failing here would only make Stripe replay the checkout event,
	// so log and acknowledge.
	if err := h.applyEntitlement(ctx, email); err != nil {
		h.logger.Errorw("failed to apply entitlement after checkout",
			"error", err,
			"event_id", event.ID,
			"email", email,
		)
		return &dto.WebhookResponse{Received: true, Error: "entitlement update failed"}, nil
	}

	h.logger.Infow("processed checkout completion", "email", email)
	return &dto.WebhookResponse{Received: true}, nil
}

// applyEntitlement recomputes the customer's entitlement from provider truth
// and writes it to the user record
func (h *Handler) applyEntitlement(ctx context.Context, email string) error {
	record, err := h.entitlementSvc.Reconcile(ctx, email)
	if err != nil {
		return err
	}

	u, err := h.userRepo.Upsert(ctx, email)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Could not upsert user in admin store").
			WithReportableDetails(map[string]any{"email": email}).
			Mark(ierr.ErrHTTPClient)
	}

	if err := h.userRepo.Patch(ctx, u.ID, user.NewEntitlementPatch(record)); err != nil {
		return ierr.WithError(err).
			WithHint("Could not patch user entitlement in admin store").
			WithReportableDetails(map[string]any{
				"email":   email,
				"user_id": u.ID,
			}).
			Mark(ierr.ErrHTTPClient)
	}

	h.logger.Infow("entitlement applied",
		"email", email,
		"user_id", u.ID,
		"status", record.Status,
		"max_concurrent_bots", record.MaxConcurrentBots,
	)
	return nil
}

// resolveSubscriptionEmail finds the purchaser email for a subscription:
// subscription metadata first, then the owning customer object
func (h *Handler) resolveSubscriptionEmail(ctx context.Context, sub *stripeapi.Subscription) string {
	meta := types.Metadata(sub.Metadata)
	if email := meta.Get("userEmail"); email != "" {
		return email
	}
	if email := meta.Get("email"); email != "" {
		return email
	}

	if sub.Customer == nil || sub.Customer.ID == "" {
		return ""
	}
	cust, err := h.provider.GetCustomer(ctx, sub.Customer.ID)
	if err != nil {
		h.logger.Warnw("could not retrieve customer for subscription event",
			"error", err,
			"customer_id", sub.Customer.ID,
		)
		return ""
	}
	return cust.Email
}

// resolveCheckoutEmail finds the purchaser email for a checkout session:
// session metadata, then the buyer details, then the subscription's customer
func (h *Handler) resolveCheckoutEmail(ctx context.Context, session *stripeapi.CheckoutSession) string {
	if email := types.Metadata(session.Metadata).Get("userEmail"); email != "" {
		return email
	}
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		return session.CustomerDetails.Email
	}
	if session.CustomerEmail != "" {
		return session.CustomerEmail
	}

	sub, err := h.provider.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		h.logger.Warnw("could not retrieve subscription for checkout session",
			"error", err,
			"subscription_id", session.Subscription.ID,
		)
		return ""
	}
	if email := sub.Email(); email != "" {
		return email
	}

	cust, err := h.provider.GetCustomer(ctx, sub.CustomerID)
	if err != nil {
		h.logger.Warnw("could not retrieve customer for checkout session",
			"error", err,
			"customer_id", sub.CustomerID,
		)
		return ""
	}
	return cust.Email
}
