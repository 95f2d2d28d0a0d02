package types

// SubscriptionStatus is the status of a subscription as reported by the
// billing provider. Taken from Stripe's subscription statuses:
// https://stripe.com/docs/api/subscriptions/object#subscription_object-status
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusScheduled         SubscriptionStatus = "scheduled"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

// EntitlementPriority is the fixed ranking used to pick the single
// authoritative subscription when a customer has accumulated several.
// Lower index wins; statuses not listed rank below all listed ones.
var EntitlementPriority = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
	SubscriptionStatusScheduled,
	SubscriptionStatusPastDue,
	SubscriptionStatusUnpaid,
	SubscriptionStatusCanceled,
	SubscriptionStatusIncomplete,
}
