package entitlement

import (
	"time"

	"github.com/vexa-ai/billing/internal/types"
)

// DefaultTier is the tier label used when the source subscription carries none
const DefaultTier = "standard"

// Entitlement is the derived record of how much service a customer is
// currently authorized to consume. It is recomputed from the provider's live
// subscription list on every reconciliation and never patched incrementally;
// the downstream store must treat each write as a full replacement.
type Entitlement struct {
	// Status is the normalized subscription status
	Status types.EntitlementStatus
	// MaxConcurrentBots is the number of concurrent bots the customer may
	// run. Zero whenever Status is a revoked state, otherwise the source
	// subscription's quantity.
	MaxConcurrentBots int64
	// ScheduledToCancel mirrors the provider's cancel_at_period_end flag
	ScheduledToCancel bool
	// CancellationEffectiveAt is the date access actually ends: the pending
	// cancellation date while scheduled, the cancellation timestamp once
	// terminal, nil otherwise.
	CancellationEffectiveAt *time.Time

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time

	// Tier is the subscription tier label, DefaultTier when unset
	Tier string

	// CustomerID and SubscriptionID are the provider ids the record was
	// derived from. SubscriptionID is empty for none-state records.
	CustomerID     string
	SubscriptionID string

	// ReconciledAt is when this record was computed
	ReconciledAt time.Time
}

// None returns the entitlement of a customer with no subscription at all
func None(customerID string) *Entitlement {
	return &Entitlement{
		Status:            types.EntitlementStatusNone,
		MaxConcurrentBots: 0,
		Tier:              DefaultTier,
		CustomerID:        customerID,
		ReconciledAt:      time.Now().UTC(),
	}
}
