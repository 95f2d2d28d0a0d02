package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vexa-ai/billing/internal/api/dto"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/integration/stripe"
	"github.com/vexa-ai/billing/internal/logger"
	"github.com/vexa-ai/billing/internal/service"
)

type BillingHandler struct {
	billingSvc *stripe.BillingService
	trialSvc   *stripe.TrialService
	statsSvc   service.StatsService
	pricingSvc service.PricingService
	logger     *logger.Logger
}

func NewBillingHandler(
	billingSvc *stripe.BillingService,
	trialSvc *stripe.TrialService,
	statsSvc service.StatsService,
	pricingSvc service.PricingService,
	logger *logger.Logger,
) *BillingHandler {
	return &BillingHandler{
		billingSvc: billingSvc,
		trialSvc:   trialSvc,
		statsSvc:   statsSvc,
		pricingSvc: pricingSvc,
		logger:     logger,
	}
}

// ResolveBillingURL handles POST /v1/stripe/resolve-url
func (h *BillingHandler) ResolveBillingURL(c *gin.Context) {
	var req dto.ResolveBillingURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	url, err := h.billingSvc.ResolveBillingURL(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ResolveBillingURLResponse{URL: url})
}

// CreatePortalSession handles POST /v1/portal/session
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	var req dto.PortalSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	url, err := h.billingSvc.CreatePortalSession(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.PortalSessionResponse{URL: url})
}

// CreateAPIKeyTrial handles POST /v1/trials/api-key
func (h *BillingHandler) CreateAPIKeyTrial(c *gin.Context) {
	var req dto.TrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.trialSvc.StartAPIKeyTrial(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetStats handles GET /v1/stats
func (h *BillingHandler) GetStats(c *gin.Context) {
	resp, err := h.statsSvc.GetCurrentStats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPricing handles GET /v1/pricing
func (h *BillingHandler) GetPricing(c *gin.Context) {
	quantity := int64(1)
	if raw := c.Query("quantity"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Quantity must be an integer").
				Mark(ierr.ErrValidation))
			return
		}
		quantity = parsed
	}

	resp, err := h.pricingSvc.Preview(c.Request.Context(), quantity)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
