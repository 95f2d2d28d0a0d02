package user

import (
	"time"

	"github.com/vexa-ai/billing/internal/domain/entitlement"
)

// User is the downstream admin-store record we track entitlement against
type User struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	MaxConcurrentBots int64  `json:"max_concurrent_bots"`
}

// EntitlementPatch is the full set of fields one reconciliation writes to a
// user record. The admin store treats it as a replacement of the tracked
// entitlement fields, never a field-by-field merge across calls; this is what
// keeps concurrent reconciliations last-writer-wins coherent.
type EntitlementPatch struct {
	MaxConcurrentBots int64

	Status                  string
	ScheduledToCancel       bool
	CancellationEffectiveAt *time.Time
	CurrentPeriodStart      *time.Time
	CurrentPeriodEnd        *time.Time
	TrialStart              *time.Time
	TrialEnd                *time.Time
	Tier                    string

	StripeCustomerID     string
	StripeSubscriptionID string

	// UpdatedByWebhookAt records when a notification last drove this patch
	UpdatedByWebhookAt time.Time
}

// NewEntitlementPatch builds the patch for one reconciled entitlement record
func NewEntitlementPatch(e *entitlement.Entitlement) *EntitlementPatch {
	return &EntitlementPatch{
		MaxConcurrentBots:       e.MaxConcurrentBots,
		Status:                  e.Status.String(),
		ScheduledToCancel:       e.ScheduledToCancel,
		CancellationEffectiveAt: e.CancellationEffectiveAt,
		CurrentPeriodStart:      e.CurrentPeriodStart,
		CurrentPeriodEnd:        e.CurrentPeriodEnd,
		TrialStart:              e.TrialStart,
		TrialEnd:                e.TrialEnd,
		Tier:                    e.Tier,
		StripeCustomerID:        e.CustomerID,
		StripeSubscriptionID:    e.SubscriptionID,
		UpdatedByWebhookAt:      time.Now().UTC(),
	}
}
