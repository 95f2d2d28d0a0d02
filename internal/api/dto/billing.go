package dto

import (
	ierr "github.com/vexa-ai/billing/internal/errors"
)

// ResolveBillingURLRequest asks for the single URL the webapp should send the
// user to for a given page context. The answer depends on whether the user
// already has a subscription.
type ResolveBillingURLRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Context string `json:"context" binding:"required"`
	// Quantity seeds the checkout line item when the pricing page starts a
	// new subscription
	Quantity int64 `json:"quantity"`
	// Origin is the webapp base URL used to build default redirect targets
	Origin     string `json:"origin"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
	ReturnURL  string `json:"returnUrl"`
}

const (
	BillingContextPricing   = "pricing"
	BillingContextDashboard = "dashboard"
)

func (r *ResolveBillingURLRequest) Validate() error {
	if r.Context != BillingContextPricing && r.Context != BillingContextDashboard {
		return ierr.NewError("invalid billing context").
			WithHint("Context must be 'pricing' or 'dashboard'").
			WithReportableDetails(map[string]any{"context": r.Context}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type ResolveBillingURLResponse struct {
	URL string `json:"url"`
}

// PortalSessionRequest opens the customer portal for an existing customer
type PortalSessionRequest struct {
	Email     string `json:"email" binding:"required,email"`
	ReturnURL string `json:"returnUrl"`
}

type PortalSessionResponse struct {
	URL string `json:"url"`
}

// TrialRequest starts the short free trial that backs first-time API key
// creation
type TrialRequest struct {
	Email  string `json:"email" binding:"required,email"`
	UserID int64  `json:"userId" binding:"required"`
}

type TrialResponse struct {
	Token          string `json:"token"`
	TrialCreated   bool   `json:"trialCreated"`
	TrialDuration  string `json:"trialDuration,omitempty"`
	TrialExpiresAt int64  `json:"trialExpiresAt,omitempty"`
	Message        string `json:"message"`
}

// StatsResponse aggregates accounts that hold contracted capacity
type StatsResponse struct {
	TotalAccounts       int   `json:"total_accounts"`
	TotalContractedBots int64 `json:"total_contracted_bots"`
}

// WebhookResponse acknowledges a provider notification. Error carries a short
// reason on paths that acknowledge despite a downstream failure.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Ignored  string `json:"ignored,omitempty"`
	Error    string `json:"error,omitempty"`
}
