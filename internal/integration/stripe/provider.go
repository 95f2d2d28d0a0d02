package stripe

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/vexa-ai/billing/internal/domain/customer"
	"github.com/vexa-ai/billing/internal/domain/subscription"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/logger"
	"github.com/vexa-ai/billing/internal/types"
)

// Provider adapts the Stripe API to the query surface reconciliation depends
// on. Every lookup goes to Stripe directly so reconciliation always sees the
// provider's current truth, never a cached or event-carried snapshot.
type Provider struct {
	client *Client
	logger *logger.Logger
}

func NewProvider(client *Client, logger *logger.Logger) *Provider {
	return &Provider{
		client: client,
		logger: logger,
	}
}

// ListSubscriptions returns the customer's subscriptions in every status.
// Errors are marked as provider failures so callers can distinguish them
// from an empty list; treating a failed fetch as "no subscriptions" would
// silently revoke entitlement.
func (p *Provider) ListSubscriptions(ctx context.Context, customerID string) ([]*subscription.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Limit = stripe.Int64(100)

	var subs []*subscription.Subscription
	for stripeSub, err := range p.client.API().V1Subscriptions.List(ctx, params) {
		if err != nil {
			p.logger.Errorw("failed to list subscriptions from Stripe",
				"error", err,
				"customer_id", customerID)
			return nil, ierr.WithError(err).
				WithHint("Could not fetch subscriptions from Stripe").
				WithReportableDetails(map[string]any{"customer_id": customerID}).
				Mark(ierr.ErrProvider)
		}
		subs = append(subs, fromStripeSubscription(stripeSub))
	}
	return subs, nil
}

// GetSubscription fetches a single subscription by id
func (p *Provider) GetSubscription(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	stripeSub, err := p.client.API().V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		p.logger.Errorw("failed to retrieve subscription from Stripe",
			"error", err,
			"subscription_id", subscriptionID)
		return nil, ierr.WithError(err).
			WithHint("Could not fetch subscription from Stripe").
			WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
			Mark(ierr.ErrProvider)
	}
	return fromStripeSubscription(stripeSub), nil
}

// GetCustomer fetches a customer by id
func (p *Provider) GetCustomer(ctx context.Context, customerID string) (*customer.Customer, error) {
	stripeCustomer, err := p.client.API().V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not fetch customer from Stripe").
			WithReportableDetails(map[string]any{"customer_id": customerID}).
			Mark(ierr.ErrProvider)
	}
	return fromStripeCustomer(stripeCustomer), nil
}

// FindCustomerByEmail searches Stripe for a customer with the given billing
// email. A missing customer is ErrNotFound, not a provider failure.
func (p *Provider) FindCustomerByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	params := &stripe.CustomerSearchParams{}
	params.Query = "email:'" + email + "'"
	params.Limit = stripe.Int64(1)

	for stripeCustomer, err := range p.client.API().V1Customers.Search(ctx, params) {
		if err != nil {
			p.logger.Errorw("failed to search customers in Stripe",
				"error", err,
				"email", email)
			return nil, ierr.WithError(err).
				WithHint("Could not search customers in Stripe").
				Mark(ierr.ErrProvider)
		}
		return fromStripeCustomer(stripeCustomer), nil
	}

	return nil, ierr.NewError("customer not found").
		WithHintf("No Stripe customer exists for email %s", email).
		Mark(ierr.ErrNotFound)
}

// FindOrCreateCustomer returns the customer for the email, creating one when
// absent. Only identity-establishment flows use this; reconciliation never
// creates customers.
func (p *Provider) FindOrCreateCustomer(ctx context.Context, email string) (*customer.Customer, error) {
	existing, err := p.FindCustomerByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	params := &stripe.CustomerCreateParams{
		Email: stripe.String(email),
	}
	params.AddMetadata("userEmail", email)

	stripeCustomer, err := p.client.API().V1Customers.Create(ctx, params)
	if err != nil {
		p.logger.Errorw("failed to create customer in Stripe",
			"error", err,
			"email", email)
		return nil, ierr.WithError(err).
			WithHint("Could not create customer in Stripe").
			Mark(ierr.ErrProvider)
	}

	p.logger.Infow("created Stripe customer",
		"customer_id", stripeCustomer.ID,
		"email", email)
	return fromStripeCustomer(stripeCustomer), nil
}

// fromStripeSubscription converts the SDK object into our view. Quantity and
// billing period come from the first line item.
func fromStripeSubscription(stripeSub *stripe.Subscription) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                stripeSub.ID,
		Status:            types.SubscriptionStatus(stripeSub.Status),
		CancelAtPeriodEnd: stripeSub.CancelAtPeriodEnd,
		CancelAt:          unixTime(stripeSub.CancelAt),
		CanceledAt:        unixTime(stripeSub.CanceledAt),
		TrialStart:        unixTime(stripeSub.TrialStart),
		TrialEnd:          unixTime(stripeSub.TrialEnd),
		Metadata:          types.Metadata(stripeSub.Metadata),
	}
	if stripeSub.Customer != nil {
		sub.CustomerID = stripeSub.Customer.ID
	}
	if stripeSub.Items != nil && len(stripeSub.Items.Data) > 0 {
		firstItem := stripeSub.Items.Data[0]
		sub.Quantity = firstItem.Quantity
		sub.CurrentPeriodStart = unixTime(firstItem.CurrentPeriodStart)
		sub.CurrentPeriodEnd = unixTime(firstItem.CurrentPeriodEnd)
	}
	return sub
}

func fromStripeCustomer(stripeCustomer *stripe.Customer) *customer.Customer {
	return &customer.Customer{
		ID:    stripeCustomer.ID,
		Email: stripeCustomer.Email,
	}
}

func unixTime(v int64) *time.Time {
	if v == 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}
