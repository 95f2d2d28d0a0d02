package stripe

import (
	"context"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/vexa-ai/billing/internal/api/dto"
	"github.com/vexa-ai/billing/internal/config"
	"github.com/vexa-ai/billing/internal/domain/user"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/logger"
)

// TrialService grants a short free trial when a user creates their first API
// key. The trial is a real provider subscription so the normal reconciliation
// path governs its entitlement, including expiry.
type TrialService struct {
	client   *Client
	provider *Provider
	catalog  *CatalogService
	userRepo user.Repository
	config   *config.Configuration
	logger   *logger.Logger
}

func NewTrialService(
	client *Client,
	provider *Provider,
	catalog *CatalogService,
	userRepo user.Repository,
	cfg *config.Configuration,
	logger *logger.Logger,
) *TrialService {
	return &TrialService{
		client:   client,
		provider: provider,
		catalog:  catalog,
		userRepo: userRepo,
		config:   cfg,
		logger:   logger,
	}
}

// StartAPIKeyTrial ensures the customer exists, creates a trial subscription
// when the customer has none at all, and mints an API token regardless. A
// customer with any existing subscription gets the token without a trial.
func (s *TrialService) StartAPIKeyTrial(ctx context.Context, req *dto.TrialRequest) (*dto.TrialResponse, error) {
	cust, err := s.provider.FindOrCreateCustomer(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	subs, err := s.provider.ListSubscriptions(ctx, cust.ID)
	if err != nil {
		return nil, err
	}

	var trialSub *stripe.Subscription
	if len(subs) == 0 {
		trialSub, err = s.createTrialSubscription(ctx, cust.ID, req)
		if err != nil {
			return nil, err
		}
	}

	token, err := s.userRepo.CreateToken(ctx, req.UserID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not create API token").
			WithReportableDetails(map[string]any{"user_id": req.UserID}).
			Mark(ierr.ErrHTTPClient)
	}

	if trialSub == nil {
		return &dto.TrialResponse{
			Token:        token,
			TrialCreated: false,
			Message:      "API key created. Existing subscription detected.",
		}, nil
	}

	// Record the trial on the user so capacity is granted before the first
	// webhook arrives
	patch := &user.EntitlementPatch{
		MaxConcurrentBots:    1,
		Status:               "trialing",
		Tier:                 "api_key_trial",
		StripeCustomerID:     cust.ID,
		StripeSubscriptionID: trialSub.ID,
		UpdatedByWebhookAt:   time.Now().UTC(),
	}
	if err := s.userRepo.Patch(ctx, req.UserID, patch); err != nil {
		s.logger.Errorw("failed to record trial on user",
			"error", err,
			"user_id", req.UserID,
			"subscription_id", trialSub.ID)
	}

	return &dto.TrialResponse{
		Token:          token,
		TrialCreated:   true,
		TrialDuration:  s.config.Billing.TrialDuration.String(),
		TrialExpiresAt: trialSub.TrialEnd,
		Message:        "API key created with free trial",
	}, nil
}

func (s *TrialService) createTrialSubscription(ctx context.Context, customerID string, req *dto.TrialRequest) (*stripe.Subscription, error) {
	_, price, err := s.catalog.FindProductAndPrice(ctx)
	if err != nil {
		return nil, err
	}

	trialEnd := time.Now().Add(s.config.Billing.TrialDuration).Unix()

	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{
				Price:    stripe.String(price.ID),
				Quantity: stripe.Int64(1),
			},
		},
		TrialEnd: stripe.Int64(trialEnd),
		// Without a card on file the subscription is canceled when the
		// trial ends, so reconciliation revokes the capacity
		TrialSettings: &stripe.SubscriptionCreateTrialSettingsParams{
			EndBehavior: &stripe.SubscriptionCreateTrialSettingsEndBehaviorParams{
				MissingPaymentMethod: stripe.String("cancel"),
			},
		},
		Metadata: map[string]string{
			"userId":     strconv.FormatInt(req.UserID, 10),
			"userEmail":  req.Email,
			"tier":       "api_key_trial",
			"createdVia": "api_key_creation",
		},
	}

	sub, err := s.client.API().V1Subscriptions.Create(ctx, params)
	if err != nil {
		s.logger.Errorw("failed to create trial subscription",
			"error", err,
			"customer_id", customerID,
			"user_id", req.UserID)
		return nil, ierr.WithError(err).
			WithHint("Could not create trial subscription in Stripe").
			WithReportableDetails(map[string]any{"customer_id": customerID}).
			Mark(ierr.ErrProvider)
	}

	s.logger.Infow("created trial subscription",
		"subscription_id", sub.ID,
		"customer_id", customerID,
		"trial_end", trialEnd)
	return sub, nil
}
