package subscription

import (
	"time"

	"github.com/vexa-ai/billing/internal/types"
)

// Subscription is our view of a provider subscription object. Only the
// fields entitlement derivation needs are carried; quantity is taken from
// the subscription's first line item.
type Subscription struct {
	// ID is the provider subscription id
	ID string
	// CustomerID is the provider customer id the subscription belongs to
	CustomerID string
	// Status is the raw provider status
	Status types.SubscriptionStatus
	// Quantity is the purchased unit count from the first line item
	Quantity int64
	// CancelAtPeriodEnd is true when cancellation is scheduled but access
	// has not yet been revoked
	CancelAtPeriodEnd bool

	CancelAt           *time.Time
	CanceledAt         *time.Time
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time

	// Metadata carries free-form provider metadata, which may include the
	// purchaser email and a tier label
	Metadata types.Metadata
}

// Email returns the purchaser email embedded in subscription metadata,
// preferring the explicit userEmail key, or "" when absent.
func (s *Subscription) Email() string {
	if email := s.Metadata.Get("userEmail"); email != "" {
		return email
	}
	return s.Metadata.Get("email")
}

// Tier returns the tier label from metadata or "" when absent
func (s *Subscription) Tier() string {
	return s.Metadata.Get("tier")
}
