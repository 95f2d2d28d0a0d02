package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/vexa-ai/billing/internal/config"
	"github.com/vexa-ai/billing/internal/domain/user"
	"github.com/vexa-ai/billing/internal/httpclient"
	"github.com/vexa-ai/billing/internal/logger"
)

type ClientTestSuite struct {
	suite.Suite
	ctx    context.Context
	server *httptest.Server

	lastMethod string
	lastPath   string
	lastAuth   string
	lastBody   map[string]any
	respond    func(w http.ResponseWriter)
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastMethod = r.Method
		s.lastPath = r.URL.Path
		s.lastAuth = r.Header.Get("X-Admin-API-Key")
		s.lastBody = nil
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&s.lastBody)
		}
		s.respond(w)
	}))
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientTestSuite) newClient() *Client {
	cfg := config.GetDefaultConfig()
	cfg.Admin = config.AdminConfig{
		APIURL:   s.server.URL,
		APIToken: "test-token",
	}
	return NewClient(cfg, httpclient.NewDefaultClient(), logger.GetLogger())
}

func (s *ClientTestSuite) TestUpsertSendsAuthAndParsesUser() {
	s.respond = func(w http.ResponseWriter) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "email": "alice@example.com"})
	}

	u, err := s.newClient().Upsert(s.ctx, "alice@example.com")
	s.NoError(err)
	s.Equal(int64(42), u.ID)
	s.Equal("alice@example.com", u.Email)

	s.Equal(http.MethodPost, s.lastMethod)
	s.Equal("/admin/users", s.lastPath)
	s.Equal("test-token", s.lastAuth)
	s.Equal("alice@example.com", s.lastBody["email"])
}

func (s *ClientTestSuite) TestUpsertUnwrapsNestedID() {
	s.respond = func(w http.ResponseWriter) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": 7}})
	}

	u, err := s.newClient().Upsert(s.ctx, "bob@example.com")
	s.NoError(err)
	s.Equal(int64(7), u.ID)
}

func (s *ClientTestSuite) TestPatchPayloadShape() {
	s.respond = func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
	}

	effective := time.Unix(1750000000, 0).UTC()
	patch := &user.EntitlementPatch{
		MaxConcurrentBots:       5,
		Status:                  "scheduled_to_cancel",
		ScheduledToCancel:       true,
		CancellationEffectiveAt: lo.ToPtr(effective),
		Tier:                    "standard",
		StripeCustomerID:        "cus_123",
		StripeSubscriptionID:    "sub_456",
		UpdatedByWebhookAt:      time.Now().UTC(),
	}

	err := s.newClient().Patch(s.ctx, 42, patch)
	s.NoError(err)

	s.Equal(http.MethodPatch, s.lastMethod)
	s.Equal("/admin/users/42", s.lastPath)
	s.Equal(float64(5), s.lastBody["max_concurrent_bots"])

	data, ok := s.lastBody["data"].(map[string]any)
	s.Require().True(ok)
	s.Equal("cus_123", data["stripe_customer_id"])
	s.Equal("sub_456", data["stripe_subscription_id"])
	s.Equal("scheduled_to_cancel", data["subscription_status"])
	s.Equal(true, data["subscription_scheduled_to_cancel"])
	s.Equal(float64(1750000000), data["subscription_cancellation_date"])
	s.Nil(data["subscription_trial_end"])
}

func (s *ClientTestSuite) TestPatchErrorOnServerFailure() {
	s.respond = func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadRequest)
	}

	err := s.newClient().Patch(s.ctx, 42, &user.EntitlementPatch{})
	s.Error(err)
}

func (s *ClientTestSuite) TestListUsers() {
	s.respond = func(w http.ResponseWriter) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "email": "a@example.com", "max_concurrent_bots": 3},
			{"id": 2, "email": "b@example.com", "max_concurrent_bots": 0},
		})
	}

	users, err := s.newClient().List(s.ctx)
	s.NoError(err)
	s.Len(users, 2)
	s.Equal(int64(3), users[0].MaxConcurrentBots)
}

func (s *ClientTestSuite) TestCreateToken() {
	s.respond = func(w http.ResponseWriter) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok_abc"})
	}

	token, err := s.newClient().CreateToken(s.ctx, 42)
	s.NoError(err)
	s.Equal("tok_abc", token)
	s.Equal("/admin/users/42/tokens", s.lastPath)
}
