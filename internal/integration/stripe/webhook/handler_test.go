package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/vexa-ai/billing/internal/domain/subscription"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/logger"
	"github.com/vexa-ai/billing/internal/service"
	"github.com/vexa-ai/billing/internal/testutil"
	"github.com/vexa-ai/billing/internal/types"
)

type HandlerTestSuite struct {
	suite.Suite
	ctx      context.Context
	provider *testutil.InMemoryProvider
	users    *testutil.InMemoryUserStore
	handler  *Handler
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.provider = testutil.NewInMemoryProvider()
	s.users = testutil.NewInMemoryUserStore()
	log := logger.GetLogger()
	entitlementSvc := service.NewEntitlementService(s.provider, types.CancellationPolicyKeepUntilPeriodEnd, log)
	s.handler = NewHandler(s.provider, entitlementSvc, s.users, log)
}

func (s *HandlerTestSuite) subscriptionEvent(eventType, subID, customerID, status string, metadata map[string]string) *stripeapi.Event {
	payload := map[string]any{
		"id":       subID,
		"status":   status,
		"customer": customerID,
	}
	if metadata != nil {
		payload["metadata"] = metadata
	}
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	return &stripeapi.Event{
		ID:   fmt.Sprintf("evt_%s_%s", eventType, subID),
		Type: stripeapi.EventType(eventType),
		Data: &stripeapi.EventData{Raw: raw},
	}
}

func (s *HandlerTestSuite) checkoutEvent(subID string, metadata map[string]string) *stripeapi.Event {
	payload := map[string]any{
		"id":           "cs_test_1",
		"subscription": subID,
	}
	if metadata != nil {
		payload["metadata"] = metadata
	}
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	return &stripeapi.Event{
		ID:   "evt_checkout_" + subID,
		Type: stripeapi.EventType(types.WebhookEventTypeCheckoutCompleted),
		Data: &stripeapi.EventData{Raw: raw},
	}
}

func (s *HandlerTestSuite) TestSubscriptionEventWritesProviderTruth() {
	cust := s.provider.AddCustomer("alice@example.com")
	s.provider.SetSubscriptions(cust.ID, &subscription.Subscription{
		ID:         "sub_new",
		CustomerID: cust.ID,
		Status:     types.SubscriptionStatusActive,
		Quantity:   5,
	})

	// The event carries a stale canceled snapshot of an older subscription;
	// the written entitlement must reflect the live active one.
	event := s.subscriptionEvent("customer.subscription.updated", "sub_old", cust.ID, "canceled", map[string]string{"userEmail": "alice@example.com"})
	resp, err := s.handler.HandleEvent(s.ctx, event)
	s.NoError(err)
	s.True(resp.Received)

	u := s.users.GetUser("alice@example.com")
	s.Require().NotNil(u)
	patch := s.users.LastPatch(u.ID)
	s.Require().NotNil(patch)
	s.Equal(int64(5), patch.MaxConcurrentBots)
	s.Equal("active", patch.Status)
	s.Equal("sub_new", patch.StripeSubscriptionID)
}

func (s *HandlerTestSuite) TestReplayIsIdempotent() {
	cust := s.provider.AddCustomer("bob@example.com")
	s.provider.SetSubscriptions(cust.ID, &subscription.Subscription{
		ID:         "sub_1",
		CustomerID: cust.ID,
		Status:     types.SubscriptionStatusActive,
		Quantity:   3,
	})

	event := s.subscriptionEvent("customer.subscription.created", "sub_1", cust.ID, "active", map[string]string{"userEmail": "bob@example.com"})
	for i := 0; i < 3; i++ {
		resp, err := s.handler.HandleEvent(s.ctx, event)
		s.NoError(err)
		s.True(resp.Received)
	}

	u := s.users.GetUser("bob@example.com")
	s.Require().NotNil(u)
	patch := s.users.LastPatch(u.ID)
	s.Require().NotNil(patch)
	s.Equal(int64(3), patch.MaxConcurrentBots)
	s.Equal(3, s.users.PatchCount)
}

func (s *HandlerTestSuite) TestOutOfOrderDeliveryConverges() {
	cust := s.provider.AddCustomer("carol@example.com")
	s.provider.SetSubscriptions(cust.ID, &subscription.Subscription{
		ID:         "sub_live",
		CustomerID: cust.ID,
		Status:     types.SubscriptionStatusActive,
		Quantity:   10,
	})

	created := s.subscriptionEvent("customer.subscription.created", "sub_live", cust.ID, "active", map[string]string{"userEmail": "carol@example.com"})
	deleted := s.subscriptionEvent("customer.subscription.deleted", "sub_trial", cust.ID, "canceled", map[string]string{"userEmail": "carol@example.com"})

	// Deliver the trial cancellation after the purchase event; both orders
	// must end with the live subscription's entitlement.
	for _, order := range [][]*stripeapi.Event{{created, deleted}, {deleted, created}} {
		for _, event := range order {
			_, err := s.handler.HandleEvent(s.ctx, event)
			s.NoError(err)
		}
		u := s.users.GetUser("carol@example.com")
		s.Require().NotNil(u)
		patch := s.users.LastPatch(u.ID)
		s.Require().NotNil(patch)
		s.Equal(int64(10), patch.MaxConcurrentBots)
		s.Equal("active", patch.Status)
	}
}

func (s *HandlerTestSuite) TestDeletionRevokesEntitlement() {
	cust := s.provider.AddCustomer("dave@example.com")
	s.provider.SetSubscriptions(cust.ID, &subscription.Subscription{
		ID:         "sub_1",
		CustomerID: cust.ID,
		Status:     types.SubscriptionStatusCanceled,
		Quantity:   4,
	})

	event := s.subscriptionEvent("customer.subscription.deleted", "sub_1", cust.ID, "canceled", map[string]string{"userEmail": "dave@example.com"})
	_, err := s.handler.HandleEvent(s.ctx, event)
	s.NoError(err)

	u := s.users.GetUser("dave@example.com")
	s.Require().NotNil(u)
	patch := s.users.LastPatch(u.ID)
	s.Require().NotNil(patch)
	s.Equal(int64(0), patch.MaxConcurrentBots)
	s.Equal("canceled", patch.Status)
}

func (s *HandlerTestSuite) TestUnresolvableIdentityIsAckedNoOp() {
	// No metadata email and the customer id is unknown to the provider
	event := s.subscriptionEvent("customer.subscription.updated", "sub_1", "cus_missing", "active", nil)
	resp, err := s.handler.HandleEvent(s.ctx, event)
	s.NoError(err)
	s.True(resp.Received)
	s.NotEmpty(resp.Error)

	users, err := s.users.List(s.ctx)
	s.NoError(err)
	s.Empty(users)
}

func (s *HandlerTestSuite) TestIrrelevantEventIsIgnored() {
	event := &stripeapi.Event{
		ID:   "evt_1",
		Type: stripeapi.EventType("invoice.paid"),
		Data: &stripeapi.EventData{Raw: json.RawMessage(`{}`)},
	}
	resp, err := s.handler.HandleEvent(s.ctx, event)
	s.NoError(err)
	s.True(resp.Received)
	s.Equal("invoice.paid", resp.Ignored)

	users, err := s.users.List(s.ctx)
	s.NoError(err)
	s.Empty(users)
}

func (s *HandlerTestSuite) TestProviderOutagePropagatesOnSubscriptionPath() {
	s.provider.AddCustomer("erin@example.com")
	s.provider.ListErr = ierr.NewError("stripe unavailable").Mark(ierr.ErrProvider)

	event := s.subscriptionEvent("customer.subscription.updated", "sub_1", "cus_001", "active", map[string]string{"userEmail": "erin@example.com"})
	_, err := s.handler.HandleEvent(s.ctx, event)
	s.Error(err)

	// No zero-entitlement record may be written on a fetch failure
	s.Nil(s.users.GetUser("erin@example.com"))
}

func (s *HandlerTestSuite) TestCheckoutPathAcknowledgesDownstreamFailure() {
	s.provider.AddCustomer("frank@example.com")
	s.provider.ListErr = ierr.NewError("stripe unavailable").Mark(ierr.ErrProvider)

	event := s.checkoutEvent("sub_1", map[string]string{"userEmail": "frank@example.com"})
	resp, err := s.handler.HandleEvent(s.ctx, event)
	s.NoError(err)
	s.True(resp.Received)
	s.NotEmpty(resp.Error)
}

func (s *HandlerTestSuite) TestCheckoutCompletionAppliesEntitlement() {
	cust := s.provider.AddCustomer("grace@example.com")
	s.provider.SetSubscriptions(cust.ID, &subscription.Subscription{
		ID:         "sub_1",
		CustomerID: cust.ID,
		Status:     types.SubscriptionStatusActive,
		Quantity:   2,
	})

	event := s.checkoutEvent("sub_1", map[string]string{"userEmail": "grace@example.com"})
	resp, err := s.handler.HandleEvent(s.ctx, event)
	s.NoError(err)
	s.True(resp.Received)
	s.Empty(resp.Error)

	u := s.users.GetUser("grace@example.com")
	s.Require().NotNil(u)
	patch := s.users.LastPatch(u.ID)
	s.Require().NotNil(patch)
	s.Equal(int64(2), patch.MaxConcurrentBots)
}
