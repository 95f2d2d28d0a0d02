package service

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/logger"
	"github.com/vexa-ai/billing/internal/testutil"
	"github.com/vexa-ai/billing/internal/types"

	"github.com/vexa-ai/billing/internal/domain/subscription"
)

type EntitlementServiceSuite struct {
	suite.Suite
	ctx      context.Context
	provider *testutil.InMemoryProvider
	svc      EntitlementService
}

func TestEntitlementServiceSuite(t *testing.T) {
	suite.Run(t, new(EntitlementServiceSuite))
}

func (s *EntitlementServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.provider = testutil.NewInMemoryProvider()
	s.svc = NewEntitlementService(s.provider, types.CancellationPolicyKeepUntilPeriodEnd, logger.GetLogger())
}

func (s *EntitlementServiceSuite) TestReconcileUnknownEmailYieldsNone() {
	record, err := s.svc.Reconcile(s.ctx, "nobody@example.com")
	s.NoError(err)
	s.Equal(types.EntitlementStatusNone, record.Status)
	s.Equal(int64(0), record.MaxConcurrentBots)
}

func (s *EntitlementServiceSuite) TestReconcileNoSubscriptionsYieldsNone() {
	cust := s.provider.AddCustomer("alice@example.com")
	record, err := s.svc.Reconcile(s.ctx, "alice@example.com")
	s.NoError(err)
	s.Equal(types.EntitlementStatusNone, record.Status)
	s.Equal(cust.ID, record.CustomerID)
}

func (s *EntitlementServiceSuite) TestReconcileSearchFailureIsAnError() {
	s.provider.FindErr = ierr.NewError("stripe down").Mark(ierr.ErrProvider)

	_, err := s.svc.Reconcile(s.ctx, "alice@example.com")
	s.Error(err)
	s.True(ierr.IsProvider(err))
}

func (s *EntitlementServiceSuite) TestReconcileListFailureNeverYieldsZeroRecord() {
	s.provider.AddCustomer("alice@example.com")
	s.provider.ListErr = ierr.NewError("stripe down").Mark(ierr.ErrProvider)

	record, err := s.svc.Reconcile(s.ctx, "alice@example.com")
	s.Error(err)
	s.Nil(record)
}

func (s *EntitlementServiceSuite) TestReconcilePicksBestAcrossAccumulatedSubscriptions() {
	cust := s.provider.AddCustomer("alice@example.com")
	s.provider.SetSubscriptions(cust.ID,
		&subscription.Subscription{ID: "sub_old", CustomerID: cust.ID, Status: types.SubscriptionStatusCanceled, Quantity: 2},
		&subscription.Subscription{ID: "sub_trial", CustomerID: cust.ID, Status: types.SubscriptionStatusTrialing, Quantity: 1},
		&subscription.Subscription{ID: "sub_live", CustomerID: cust.ID, Status: types.SubscriptionStatusActive, Quantity: 7},
	)

	record, err := s.svc.Reconcile(s.ctx, "alice@example.com")
	s.NoError(err)
	s.Equal("sub_live", record.SubscriptionID)
	s.Equal(types.EntitlementStatusActive, record.Status)
	s.Equal(int64(7), record.MaxConcurrentBots)
}

func TestSelectBestSubscription(t *testing.T) {
	sub := func(id string, status types.SubscriptionStatus) *subscription.Subscription {
		return &subscription.Subscription{ID: id, Status: status}
	}

	tests := []struct {
		name   string
		subs   []*subscription.Subscription
		wantID string
	}{
		{
			name:   "empty list",
			subs:   nil,
			wantID: "",
		},
		{
			name:   "single subscription",
			subs:   []*subscription.Subscription{sub("a", types.SubscriptionStatusCanceled)},
			wantID: "a",
		},
		{
			name: "active beats trialing",
			subs: []*subscription.Subscription{
				sub("trial", types.SubscriptionStatusTrialing),
				sub("live", types.SubscriptionStatusActive),
			},
			wantID: "live",
		},
		{
			name: "trialing beats past_due",
			subs: []*subscription.Subscription{
				sub("overdue", types.SubscriptionStatusPastDue),
				sub("trial", types.SubscriptionStatusTrialing),
			},
			wantID: "trial",
		},
		{
			name: "unranked status loses to every ranked one",
			subs: []*subscription.Subscription{
				sub("weird", types.SubscriptionStatus("paused")),
				sub("dead", types.SubscriptionStatusIncomplete),
			},
			wantID: "dead",
		},
		{
			name: "tie keeps first in input order",
			subs: []*subscription.Subscription{
				sub("first", types.SubscriptionStatusActive),
				sub("second", types.SubscriptionStatusActive),
			},
			wantID: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectBestSubscription(tt.subs)
			if tt.wantID == "" {
				if got != nil {
					t.Fatalf("expected nil, got %q", got.ID)
				}
				return
			}
			if got == nil || got.ID != tt.wantID {
				t.Fatalf("expected %q, got %+v", tt.wantID, got)
			}
		})
	}
}

func TestComputeEntitlement(t *testing.T) {
	cancelAt := time.Unix(1760000000, 0).UTC()
	periodEnd := time.Unix(1765000000, 0).UTC()
	canceledAt := time.Unix(1755000000, 0).UTC()

	tests := []struct {
		name          string
		sub           *subscription.Subscription
		policy        types.CancellationPolicy
		wantStatus    types.EntitlementStatus
		wantBots      int64
		wantScheduled bool
		wantEffective *time.Time
		wantTier      string
	}{
		{
			name:       "active keeps quantity",
			sub:        &subscription.Subscription{Status: types.SubscriptionStatusActive, Quantity: 5},
			policy:     types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus: types.EntitlementStatusActive,
			wantBots:   5,
			wantTier:   "standard",
		},
		{
			name:       "trialing keeps quantity",
			sub:        &subscription.Subscription{Status: types.SubscriptionStatusTrialing, Quantity: 1},
			policy:     types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus: types.EntitlementStatusTrialing,
			wantBots:   1,
			wantTier:   "standard",
		},
		{
			name:          "canceled zeroes units",
			sub:           &subscription.Subscription{Status: types.SubscriptionStatusCanceled, Quantity: 5, CanceledAt: &canceledAt},
			policy:        types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus:    types.EntitlementStatusCanceled,
			wantBots:      0,
			wantEffective: &canceledAt,
			wantTier:      "standard",
		},
		{
			name:       "incomplete_expired zeroes units",
			sub:        &subscription.Subscription{Status: types.SubscriptionStatusIncompleteExpired, Quantity: 3},
			policy:     types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus: types.EntitlementStatusIncompleteExpired,
			wantBots:   0,
			wantTier:   "standard",
		},
		{
			name:       "unpaid zeroes units",
			sub:        &subscription.Subscription{Status: types.SubscriptionStatusUnpaid, Quantity: 3},
			policy:     types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus: types.EntitlementStatusUnpaid,
			wantBots:   0,
			wantTier:   "standard",
		},
		{
			name:       "past_due keeps quantity",
			sub:        &subscription.Subscription{Status: types.SubscriptionStatusPastDue, Quantity: 4},
			policy:     types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus: types.EntitlementStatusPastDue,
			wantBots:   4,
			wantTier:   "standard",
		},
		{
			name: "scheduled cancellation keeps quantity until period end",
			sub: &subscription.Subscription{
				Status:            types.SubscriptionStatusActive,
				Quantity:          5,
				CancelAtPeriodEnd: true,
				CancelAt:          &cancelAt,
			},
			policy:        types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus:    types.EntitlementStatusScheduledToCancel,
			wantBots:      5,
			wantScheduled: true,
			wantEffective: &cancelAt,
			wantTier:      "standard",
		},
		{
			name: "scheduled cancellation falls back to period end date",
			sub: &subscription.Subscription{
				Status:            types.SubscriptionStatusActive,
				Quantity:          5,
				CancelAtPeriodEnd: true,
				CurrentPeriodEnd:  &periodEnd,
			},
			policy:        types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus:    types.EntitlementStatusScheduledToCancel,
			wantBots:      5,
			wantScheduled: true,
			wantEffective: &periodEnd,
			wantTier:      "standard",
		},
		{
			name: "scheduled cancellation revokes under immediate policy",
			sub: &subscription.Subscription{
				Status:            types.SubscriptionStatusActive,
				Quantity:          5,
				CancelAtPeriodEnd: true,
				CancelAt:          &cancelAt,
			},
			policy:        types.CancellationPolicyRevokeImmediately,
			wantStatus:    types.EntitlementStatusScheduledToCancel,
			wantBots:      0,
			wantScheduled: true,
			wantEffective: &cancelAt,
			wantTier:      "standard",
		},
		{
			name: "cancel_at_period_end on trialing does not rewrite status",
			sub: &subscription.Subscription{
				Status:            types.SubscriptionStatusTrialing,
				Quantity:          1,
				CancelAtPeriodEnd: true,
				CancelAt:          &cancelAt,
			},
			policy:        types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus:    types.EntitlementStatusTrialing,
			wantBots:      1,
			wantScheduled: true,
			wantEffective: &cancelAt,
			wantTier:      "standard",
		},
		{
			name:       "unrecognized status maps to unknown and keeps quantity",
			sub:        &subscription.Subscription{Status: types.SubscriptionStatus("paused"), Quantity: 2},
			policy:     types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus: types.EntitlementStatusUnknown,
			wantBots:   2,
			wantTier:   "standard",
		},
		{
			name: "tier label comes from metadata",
			sub: &subscription.Subscription{
				Status:   types.SubscriptionStatusActive,
				Quantity: 1,
				Metadata: types.Metadata{"tier": "api_key_trial"},
			},
			policy:     types.CancellationPolicyKeepUntilPeriodEnd,
			wantStatus: types.EntitlementStatusActive,
			wantBots:   1,
			wantTier:   "api_key_trial",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeEntitlement(tt.sub, tt.policy)
			if got.Status != tt.wantStatus {
				t.Errorf("status: want %s, got %s", tt.wantStatus, got.Status)
			}
			if got.MaxConcurrentBots != tt.wantBots {
				t.Errorf("max bots: want %d, got %d", tt.wantBots, got.MaxConcurrentBots)
			}
			if got.ScheduledToCancel != tt.wantScheduled {
				t.Errorf("scheduled: want %v, got %v", tt.wantScheduled, got.ScheduledToCancel)
			}
			if tt.wantEffective == nil && got.CancellationEffectiveAt != nil {
				t.Errorf("effective date: want nil, got %v", got.CancellationEffectiveAt)
			}
			if tt.wantEffective != nil {
				if got.CancellationEffectiveAt == nil || !got.CancellationEffectiveAt.Equal(*tt.wantEffective) {
					t.Errorf("effective date: want %v, got %v", tt.wantEffective, got.CancellationEffectiveAt)
				}
			}
			if got.Tier != tt.wantTier {
				t.Errorf("tier: want %s, got %s", tt.wantTier, got.Tier)
			}
		})
	}
}

func TestComputeEntitlementCarriesPeriodAndTrialWindows(t *testing.T) {
	start := time.Unix(1750000000, 0).UTC()
	end := time.Unix(1752600000, 0).UTC()

	sub := &subscription.Subscription{
		ID:                 "sub_1",
		CustomerID:         "cus_1",
		Status:             types.SubscriptionStatusTrialing,
		Quantity:           1,
		CurrentPeriodStart: lo.ToPtr(start),
		CurrentPeriodEnd:   lo.ToPtr(end),
		TrialStart:         lo.ToPtr(start),
		TrialEnd:           lo.ToPtr(end),
	}

	got := ComputeEntitlement(sub, types.CancellationPolicyKeepUntilPeriodEnd)
	if got.CurrentPeriodStart == nil || !got.CurrentPeriodStart.Equal(start) {
		t.Errorf("period start not carried: %v", got.CurrentPeriodStart)
	}
	if got.TrialEnd == nil || !got.TrialEnd.Equal(end) {
		t.Errorf("trial end not carried: %v", got.TrialEnd)
	}
	if got.SubscriptionID != "sub_1" || got.CustomerID != "cus_1" {
		t.Errorf("identity not carried: %+v", got)
	}
	if got.ReconciledAt.IsZero() {
		t.Error("reconciled timestamp not set")
	}
}
