package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vexa-ai/billing/internal/config"
	"github.com/vexa-ai/billing/internal/domain/user"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/httpclient"
	"github.com/vexa-ai/billing/internal/logger"
)

// Client implements user.Repository against the admin API, the external
// store that owns user records. Entitlement fields travel in a "data" object
// with unix-second timestamps; max_concurrent_bots lives at the root.
type Client struct {
	baseURL string
	token   string
	http    httpclient.Client
	logger  *logger.Logger
}

func NewClient(cfg *config.Configuration, http httpclient.Client, logger *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.Admin.APIURL,
		token:   cfg.Admin.APIToken,
		http:    http,
		logger:  logger,
	}
}

type userEnvelope struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	// MaxConcurrentBots mirrors the root-level field the patch writes
	MaxConcurrentBots int64 `json:"max_concurrent_bots"`
	// Some admin responses wrap the user in a data object
	Data *struct {
		ID int64 `json:"id"`
	} `json:"data,omitempty"`
}

func (e *userEnvelope) userID() int64 {
	if e.ID != 0 {
		return e.ID
	}
	if e.Data != nil {
		return e.Data.ID
	}
	return 0
}

// Upsert finds or creates a user by email
func (c *Client) Upsert(ctx context.Context, email string) (*user.User, error) {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, http.MethodPost, "/admin/users", body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Admin API user upsert failed").
			WithReportableDetails(map[string]any{"email": email}).
			Mark(ierr.ErrHTTPClient)
	}

	var envelope userEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Admin API returned an unexpected user payload").
			Mark(ierr.ErrHTTPClient)
	}
	userID := envelope.userID()
	if userID == 0 {
		return nil, ierr.NewError("admin API user without id").
			WithHint("Admin API returned an unexpected user payload").
			WithReportableDetails(map[string]any{"email": email}).
			Mark(ierr.ErrHTTPClient)
	}

	return &user.User{
		ID:                userID,
		Email:             email,
		MaxConcurrentBots: envelope.MaxConcurrentBots,
	}, nil
}

// Patch replaces the tracked entitlement fields of a user record
func (c *Client) Patch(ctx context.Context, userID int64, patch *user.EntitlementPatch) error {
	payload := map[string]any{
		"max_concurrent_bots": patch.MaxConcurrentBots,
		"data": map[string]any{
			"updated_by_webhook":                patch.UpdatedByWebhookAt.Unix(),
			"stripe_customer_id":                patch.StripeCustomerID,
			"stripe_subscription_id":            patch.StripeSubscriptionID,
			"subscription_tier":                 patch.Tier,
			"subscription_status":               patch.Status,
			"subscription_scheduled_to_cancel":  patch.ScheduledToCancel,
			"subscription_cancel_at_period_end": patch.ScheduledToCancel,
			"subscription_cancellation_date":    unixOrNil(patch.CancellationEffectiveAt),
			"subscription_current_period_start": unixOrNil(patch.CurrentPeriodStart),
			"subscription_current_period_end":   unixOrNil(patch.CurrentPeriodEnd),
			"subscription_trial_start":          unixOrNil(patch.TrialStart),
			"subscription_trial_end":            unixOrNil(patch.TrialEnd),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := c.send(ctx, http.MethodPatch, fmt.Sprintf("/admin/users/%d", userID), body); err != nil {
		return ierr.WithError(err).
			WithHint("Admin API user patch failed").
			WithReportableDetails(map[string]any{"user_id": userID}).
			Mark(ierr.ErrHTTPClient)
	}

	c.logger.Debugw("patched user entitlement",
		"user_id", userID,
		"max_concurrent_bots", patch.MaxConcurrentBots,
		"status", patch.Status,
	)
	return nil
}

// List returns all user records
func (c *Client) List(ctx context.Context) ([]*user.User, error) {
	resp, err := c.send(ctx, http.MethodGet, "/admin/users?limit=10000", nil)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Admin API user list failed").
			Mark(ierr.ErrHTTPClient)
	}

	var users []*user.User
	if err := json.Unmarshal(resp.Body, &users); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Admin API returned an unexpected user list payload").
			Mark(ierr.ErrHTTPClient)
	}
	return users, nil
}

// CreateToken mints a new API token for the user
func (c *Client) CreateToken(ctx context.Context, userID int64) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, fmt.Sprintf("/admin/users/%d/tokens", userID), nil)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Admin API token create failed").
			WithReportableDetails(map[string]any{"user_id": userID}).
			Mark(ierr.ErrHTTPClient)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.Token == "" {
		// Some admin deployments return the token as a bare string
		var raw string
		if jsonErr := json.Unmarshal(resp.Body, &raw); jsonErr == nil && raw != "" {
			return raw, nil
		}
		return "", ierr.NewError("admin API token response without token").
			WithHint("Admin API returned an unexpected token payload").
			Mark(ierr.ErrHTTPClient)
	}
	return payload.Token, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*httpclient.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return c.http.Send(ctx, &httpclient.Request{
		Method: method,
		URL:    c.baseURL + path,
		Headers: map[string]string{
			"X-Admin-API-Key": c.token,
		},
		Body: body,
	})
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
