package types

// EntitlementStatus is the normalized subscription status written downstream.
// It mirrors the provider statuses plus the states the provider cannot
// express directly: a scheduled cancellation that is still paid for, the
// absence of any subscription, and a status we do not recognize.
type EntitlementStatus string

const (
	EntitlementStatusActive            EntitlementStatus = "active"
	EntitlementStatusTrialing          EntitlementStatus = "trialing"
	EntitlementStatusScheduledToCancel EntitlementStatus = "scheduled_to_cancel"
	EntitlementStatusPastDue           EntitlementStatus = "past_due"
	EntitlementStatusUnpaid            EntitlementStatus = "unpaid"
	EntitlementStatusCanceled          EntitlementStatus = "canceled"
	EntitlementStatusIncomplete        EntitlementStatus = "incomplete"
	EntitlementStatusIncompleteExpired EntitlementStatus = "incomplete_expired"
	EntitlementStatusNone              EntitlementStatus = "none"
	EntitlementStatusUnknown           EntitlementStatus = "unknown"
)

func (s EntitlementStatus) String() string {
	return string(s)
}

// knownEntitlementStatuses is the set of provider statuses that pass through
// normalization unchanged.
var knownEntitlementStatuses = map[SubscriptionStatus]EntitlementStatus{
	SubscriptionStatusActive:            EntitlementStatusActive,
	SubscriptionStatusTrialing:          EntitlementStatusTrialing,
	SubscriptionStatusPastDue:           EntitlementStatusPastDue,
	SubscriptionStatusUnpaid:            EntitlementStatusUnpaid,
	SubscriptionStatusCanceled:          EntitlementStatusCanceled,
	SubscriptionStatusIncomplete:        EntitlementStatusIncomplete,
	SubscriptionStatusIncompleteExpired: EntitlementStatusIncompleteExpired,
}

// NormalizeSubscriptionStatus maps a raw provider status to the downstream
// entitlement status. Unrecognized statuses map to unknown.
func NormalizeSubscriptionStatus(s SubscriptionStatus) EntitlementStatus {
	if normalized, ok := knownEntitlementStatuses[s]; ok {
		return normalized
	}
	return EntitlementStatusUnknown
}

// IsRevoked reports whether the status terminates access immediately:
// the subscription is gone and no units should remain provisioned.
func (s EntitlementStatus) IsRevoked() bool {
	switch s {
	case EntitlementStatusCanceled, EntitlementStatusIncompleteExpired, EntitlementStatusUnpaid, EntitlementStatusNone:
		return true
	}
	return false
}

// CancellationPolicy decides what happens to entitlement units while a
// subscription is scheduled to cancel but the paid period has not ended.
type CancellationPolicy string

const (
	// CancellationPolicyKeepUntilPeriodEnd preserves the paid quantity until
	// the effective cancellation date.
	CancellationPolicyKeepUntilPeriodEnd CancellationPolicy = "keep_until_period_end"
	// CancellationPolicyRevokeImmediately zeroes the quantity as soon as the
	// cancellation is scheduled.
	CancellationPolicyRevokeImmediately CancellationPolicy = "revoke_immediately"
)
