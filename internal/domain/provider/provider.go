package provider

import (
	"context"

	"github.com/vexa-ai/billing/internal/domain/customer"
	"github.com/vexa-ai/billing/internal/domain/subscription"
)

// Provider is the query surface of the upstream billing provider that
// entitlement reconciliation depends on. Implementations must return
// ErrNotFound-marked errors for missing customers so callers can tell
// "no customer" apart from transient provider failures.
type Provider interface {
	// ListSubscriptions returns all of the customer's subscriptions in every
	// status, newest first as the provider returns them
	ListSubscriptions(ctx context.Context, customerID string) ([]*subscription.Subscription, error)

	// GetSubscription fetches a single subscription by provider id
	GetSubscription(ctx context.Context, subscriptionID string) (*subscription.Subscription, error)

	// GetCustomer fetches a customer by provider id
	GetCustomer(ctx context.Context, customerID string) (*customer.Customer, error)

	// FindCustomerByEmail looks a customer up by billing email
	FindCustomerByEmail(ctx context.Context, email string) (*customer.Customer, error)

	// FindOrCreateCustomer looks a customer up by billing email, creating
	// one when absent. Used by identity-establishment flows only;
	// reconciliation never creates customers.
	FindOrCreateCustomer(ctx context.Context, email string) (*customer.Customer, error)
}
