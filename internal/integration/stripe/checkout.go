package stripe

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
	"github.com/vexa-ai/billing/internal/api/dto"
	"github.com/vexa-ai/billing/internal/config"
	"github.com/vexa-ai/billing/internal/domain/customer"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/logger"
	"github.com/vexa-ai/billing/internal/types"
)

// BillingService resolves the right Stripe-hosted page for a user: checkout
// for new subscribers, the customer portal for existing ones.
type BillingService struct {
	client   *Client
	provider *Provider
	catalog  *CatalogService
	config   *config.Configuration
	logger   *logger.Logger
}

func NewBillingService(
	client *Client,
	provider *Provider,
	catalog *CatalogService,
	cfg *config.Configuration,
	logger *logger.Logger,
) *BillingService {
	return &BillingService{
		client:   client,
		provider: provider,
		catalog:  catalog,
		config:   cfg,
		logger:   logger,
	}
}

// ResolveBillingURL decides where the webapp should send the user. A
// customer with a live subscription goes to the portal; one without goes to
// checkout from the pricing page or back to the pricing page from the
// dashboard. Trials deliberately count as "no subscription" here so trial
// users still see the subscribe flow.
func (s *BillingService) ResolveBillingURL(ctx context.Context, req *dto.ResolveBillingURLRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	_, price, err := s.catalog.FindProductAndPrice(ctx)
	if err != nil {
		return "", err
	}

	cust, err := s.provider.FindOrCreateCustomer(ctx, req.Email)
	if err != nil {
		return "", err
	}

	hasSubscription, err := s.hasLiveSubscription(ctx, cust.ID)
	if err != nil {
		return "", err
	}

	origin := req.Origin
	if origin == "" {
		// Derive the webapp origin from the configured portal return URL
		origin = strings.TrimRight(s.config.Billing.PortalReturnURL, "/")
		if idx := strings.LastIndex(origin, "/"); idx > len("https://") {
			origin = origin[:idx]
		}
	}
	successURL := lo.Ternary(req.SuccessURL != "", req.SuccessURL, origin+"/dashboard")
	cancelURL := lo.Ternary(req.CancelURL != "", req.CancelURL, origin+"/pricing")

	s.logger.Infow("resolving billing url",
		"email", req.Email,
		"context", req.Context,
		"has_subscription", hasSubscription)

	if hasSubscription {
		// Subscribed users always land back on the dashboard
		return s.createConfiguredPortalSession(ctx, cust.ID, origin+"/dashboard")
	}

	if req.Context == dto.BillingContextPricing {
		quantity := max(req.Quantity, 1)
		return s.createCheckoutSession(ctx, cust, price.ID, quantity, successURL, cancelURL)
	}

	// dashboard context without a subscription: send them to pricing
	return origin + "/pricing", nil
}

// CreatePortalSession opens the customer portal for an existing customer.
// Users without a card on file are routed straight into the add-payment-method
// flow first. Portal configuration failures fall back to Stripe's default
// portal rather than blocking the user.
func (s *BillingService) CreatePortalSession(ctx context.Context, req *dto.PortalSessionRequest) (string, error) {
	cust, err := s.provider.FindCustomerByEmail(ctx, req.Email)
	if err != nil {
		return "", err
	}

	returnURL := lo.Ternary(req.ReturnURL != "", req.ReturnURL, s.config.Billing.PortalReturnURL)

	configID, err := s.createPortalConfiguration(ctx, returnURL)
	if err != nil {
		s.logger.Warnw("portal configuration failed, falling back to default portal",
			"error", err,
			"customer_id", cust.ID)
		return s.createDefaultPortalSession(ctx, cust.ID, returnURL)
	}

	hasPaymentMethod, err := s.hasCardOnFile(ctx, cust.ID)
	if err != nil {
		s.logger.Warnw("payment method lookup failed, falling back to default portal",
			"error", err,
			"customer_id", cust.ID)
		return s.createDefaultPortalSession(ctx, cust.ID, returnURL)
	}

	params := &stripe.BillingPortalSessionCreateParams{
		Customer:      stripe.String(cust.ID),
		ReturnURL:     stripe.String(returnURL),
		Configuration: stripe.String(configID),
	}
	if !hasPaymentMethod {
		params.FlowData = &stripe.BillingPortalSessionCreateFlowDataParams{
			Type: stripe.String("payment_method_update"),
			AfterCompletion: &stripe.BillingPortalSessionCreateFlowDataAfterCompletionParams{
				Type: stripe.String("portal_homepage"),
			},
		}
	}

	session, err := s.client.API().V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		s.logger.Warnw("portal session with configuration failed, falling back to default portal",
			"error", err,
			"customer_id", cust.ID)
		return s.createDefaultPortalSession(ctx, cust.ID, returnURL)
	}

	s.logger.Infow("created portal session",
		"session_id", session.ID,
		"customer_id", cust.ID,
		"payment_method_flow", !hasPaymentMethod)
	return session.URL, nil
}

// hasLiveSubscription reports whether the customer has a subscription that
// should route them to the portal instead of checkout
func (s *BillingService) hasLiveSubscription(ctx context.Context, customerID string) (bool, error) {
	subs, err := s.provider.ListSubscriptions(ctx, customerID)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.Status == types.SubscriptionStatusActive || sub.Status == types.SubscriptionStatusScheduled {
			return true, nil
		}
	}
	return false, nil
}

func (s *BillingService) hasCardOnFile(ctx context.Context, customerID string) (bool, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String("card"),
	}
	params.Limit = stripe.Int64(1)

	for _, err := range s.client.API().V1PaymentMethods.List(ctx, params) {
		if err != nil {
			return false, ierr.WithError(err).
				WithHint("Could not list payment methods in Stripe").
				Mark(ierr.ErrProvider)
		}
		return true, nil
	}
	return false, nil
}

// createConfiguredPortalSession builds a portal configuration scoped to the
// billing product and opens a session with it, falling back to the default
// portal when configuration fails
func (s *BillingService) createConfiguredPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	configID, err := s.createPortalConfiguration(ctx, returnURL)
	if err != nil {
		s.logger.Warnw("portal configuration failed, falling back to default portal",
			"error", err,
			"customer_id", customerID)
		return s.createDefaultPortalSession(ctx, customerID, returnURL)
	}

	session, err := s.client.API().V1BillingPortalSessions.Create(ctx, &stripe.BillingPortalSessionCreateParams{
		Customer:      stripe.String(customerID),
		ReturnURL:     stripe.String(returnURL),
		Configuration: stripe.String(configID),
	})
	if err != nil {
		return s.createDefaultPortalSession(ctx, customerID, returnURL)
	}
	return session.URL, nil
}

func (s *BillingService) createDefaultPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	session, err := s.client.API().V1BillingPortalSessions.Create(ctx, &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Could not create billing portal session").
			WithReportableDetails(map[string]any{"customer_id": customerID}).
			Mark(ierr.ErrProvider)
	}
	return session.URL, nil
}

// createPortalConfiguration creates a portal configuration that allows
// quantity and price changes on the billing product, cancellation, payment
// method updates and invoice history
func (s *BillingService) createPortalConfiguration(ctx context.Context, returnURL string) (string, error) {
	product, price, err := s.catalog.FindProductAndPrice(ctx)
	if err != nil {
		return "", err
	}

	params := &stripe.BillingPortalConfigurationCreateParams{
		Features: &stripe.BillingPortalConfigurationCreateFeaturesParams{
			SubscriptionUpdate: &stripe.BillingPortalConfigurationCreateFeaturesSubscriptionUpdateParams{
				Enabled:               stripe.Bool(true),
				DefaultAllowedUpdates: stripe.StringSlice([]string{"price", "quantity"}),
				Products: []*stripe.BillingPortalConfigurationCreateFeaturesSubscriptionUpdateProductParams{
					{
						Product: stripe.String(product.ID),
						Prices:  stripe.StringSlice([]string{price.ID}),
					},
				},
				ProrationBehavior: stripe.String("always_invoice"),
			},
			SubscriptionCancel: &stripe.BillingPortalConfigurationCreateFeaturesSubscriptionCancelParams{
				Enabled: stripe.Bool(true),
			},
			PaymentMethodUpdate: &stripe.BillingPortalConfigurationCreateFeaturesPaymentMethodUpdateParams{
				Enabled: stripe.Bool(true),
			},
			InvoiceHistory: &stripe.BillingPortalConfigurationCreateFeaturesInvoiceHistoryParams{
				Enabled: stripe.Bool(true),
			},
		},
		DefaultReturnURL: stripe.String(returnURL),
	}

	portalConfig, err := s.client.API().V1BillingPortalConfigurations.Create(ctx, params)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Could not create billing portal configuration").
			Mark(ierr.ErrProvider)
	}
	return portalConfig.ID, nil
}

func (s *BillingService) createCheckoutSession(ctx context.Context, cust *customer.Customer, priceID string, quantity int64, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:     stripe.String("subscription"),
		Customer: stripe.String(cust.ID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(quantity),
			},
		},
		SuccessURL:          stripe.String(successURL),
		CancelURL:           stripe.String(cancelURL),
		AllowPromotionCodes: stripe.Bool(true),
		Metadata:            map[string]string{"userEmail": cust.Email},
	}

	session, err := s.client.API().V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		s.logger.Errorw("failed to create checkout session",
			"error", err,
			"customer_id", cust.ID,
			"quantity", quantity)
		return "", ierr.WithError(err).
			WithHint("Unable to create Stripe checkout session").
			WithReportableDetails(map[string]any{
				"customer_id": cust.ID,
				"quantity":    quantity,
			}).
			Mark(ierr.ErrProvider)
	}

	s.logger.Infow("created checkout session",
		"session_id", session.ID,
		"customer_id", cust.ID,
		"quantity", quantity)
	return session.URL, nil
}
