package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/vexa-ai/billing/internal/domain/entitlement"
	"github.com/vexa-ai/billing/internal/domain/provider"
	"github.com/vexa-ai/billing/internal/domain/subscription"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/logger"
	"github.com/vexa-ai/billing/internal/types"
)

// EntitlementService derives the authoritative entitlement of a customer.
// It never trusts a notification payload: every reconciliation re-fetches the
// full live subscription list from the provider, which makes the result
// idempotent and independent of notification arrival order.
type EntitlementService interface {
	// Reconcile computes the entitlement for the customer identified by
	// email. A missing customer is not an error; it yields a none-state
	// record. Provider failures are returned as errors and never as a
	// zero-entitlement record.
	Reconcile(ctx context.Context, email string) (*entitlement.Entitlement, error)

	// ReconcileCustomer is Reconcile for an already resolved provider
	// customer id
	ReconcileCustomer(ctx context.Context, customerID string) (*entitlement.Entitlement, error)
}

type entitlementService struct {
	provider provider.Provider
	policy   types.CancellationPolicy
	log      *logger.Logger
}

func NewEntitlementService(
	provider provider.Provider,
	policy types.CancellationPolicy,
	log *logger.Logger,
) EntitlementService {
	return &entitlementService{
		provider: provider,
		policy:   policy,
		log:      log,
	}
}

func (s *entitlementService) Reconcile(ctx context.Context, email string) (*entitlement.Entitlement, error) {
	cust, err := s.provider.FindCustomerByEmail(ctx, email)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.log.Infow("no provider customer for email, entitlement is none", "email", email)
			return entitlement.None(""), nil
		}
		return nil, ierr.WithError(err).
			WithHint("Could not look up the billing customer").
			Mark(ierr.ErrProvider)
	}

	return s.ReconcileCustomer(ctx, cust.ID)
}

func (s *entitlementService) ReconcileCustomer(ctx context.Context, customerID string) (*entitlement.Entitlement, error) {
	subs, err := s.provider.ListSubscriptions(ctx, customerID)
	if err != nil {
		// A fetch failure must surface as a failure: writing zero units here
		// would be indistinguishable downstream from a real cancellation.
		return nil, ierr.WithError(err).
			WithHint("Could not fetch the customer's subscriptions").
			WithReportableDetails(map[string]any{"customer_id": customerID}).
			Mark(ierr.ErrProvider)
	}

	best := SelectBestSubscription(subs)
	if best == nil {
		s.log.Infow("customer has no subscriptions, entitlement is none", "customer_id", customerID)
		return entitlement.None(customerID), nil
	}

	record := ComputeEntitlement(best, s.policy)
	s.log.Infow("reconciled entitlement",
		"customer_id", customerID,
		"subscription_id", best.ID,
		"raw_status", best.Status,
		"status", record.Status,
		"max_concurrent_bots", record.MaxConcurrentBots,
		"scheduled_to_cancel", record.ScheduledToCancel,
	)
	return record, nil
}

// SelectBestSubscription picks the single subscription that should drive
// entitlement from a customer's full subscription list. Customers accumulate
// subscription objects over time (old canceled ones, an expired trial, a new
// purchase); the most valuable current state wins, ranked by
// types.EntitlementPriority. Ties keep the first subscription in input order.
// Returns nil for an empty list.
func SelectBestSubscription(subs []*subscription.Subscription) *subscription.Subscription {
	var best *subscription.Subscription
	bestRank := len(types.EntitlementPriority) + 1

	for _, sub := range subs {
		rank := lo.IndexOf(types.EntitlementPriority, sub.Status)
		if rank < 0 {
			// unranked statuses sort below every listed one
			rank = len(types.EntitlementPriority)
		}
		if rank < bestRank {
			best = sub
			bestRank = rank
		}
	}

	return best
}

// ComputeEntitlement normalizes one subscription into the entitlement record
// written downstream. Pure transform; no provider calls.
func ComputeEntitlement(sub *subscription.Subscription, policy types.CancellationPolicy) *entitlement.Entitlement {
	scheduled := sub.CancelAtPeriodEnd

	status := types.NormalizeSubscriptionStatus(sub.Status)
	if scheduled && sub.Status == types.SubscriptionStatusActive {
		status = types.EntitlementStatusScheduledToCancel
	}

	maxBots := sub.Quantity
	switch {
	case status.IsRevoked():
		maxBots = 0
	case status == types.EntitlementStatusScheduledToCancel && policy == types.CancellationPolicyRevokeImmediately:
		maxBots = 0
	}

	// While scheduled, the effective date is when access will actually end;
	// once terminal it is when the subscription was canceled.
	var effectiveAt *time.Time
	if scheduled {
		effectiveAt = sub.CancelAt
		if effectiveAt == nil {
			effectiveAt = sub.CurrentPeriodEnd
		}
	} else {
		effectiveAt = sub.CanceledAt
	}

	tier := sub.Tier()
	if tier == "" {
		tier = entitlement.DefaultTier
	}

	return &entitlement.Entitlement{
		Status:                  status,
		MaxConcurrentBots:       maxBots,
		ScheduledToCancel:       scheduled,
		CancellationEffectiveAt: effectiveAt,
		CurrentPeriodStart:      sub.CurrentPeriodStart,
		CurrentPeriodEnd:        sub.CurrentPeriodEnd,
		TrialStart:              sub.TrialStart,
		TrialEnd:                sub.TrialEnd,
		Tier:                    tier,
		CustomerID:              sub.CustomerID,
		SubscriptionID:          sub.ID,
		ReconciledAt:            time.Now().UTC(),
	}
}
