package types

// WebhookEventType identifies the provider webhook events we care about
type WebhookEventType string

const (
	WebhookEventTypeSubscriptionCreated WebhookEventType = "customer.subscription.created"
	WebhookEventTypeSubscriptionUpdated WebhookEventType = "customer.subscription.updated"
	WebhookEventTypeSubscriptionDeleted WebhookEventType = "customer.subscription.deleted"
	WebhookEventTypeCheckoutCompleted   WebhookEventType = "checkout.session.completed"
)

// IsEntitlementRelevant reports whether the event type can change a
// customer's entitlement and therefore must trigger reconciliation.
func (t WebhookEventType) IsEntitlementRelevant() bool {
	switch t {
	case WebhookEventTypeSubscriptionCreated,
		WebhookEventTypeSubscriptionUpdated,
		WebhookEventTypeSubscriptionDeleted,
		WebhookEventTypeCheckoutCompleted:
		return true
	}
	return false
}
