package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vexa-ai/billing/internal/api/dto"
	"github.com/vexa-ai/billing/internal/config"
	"github.com/vexa-ai/billing/internal/logger"
	"github.com/vexa-ai/billing/internal/pricing"
)

// PricingService renders the static price catalog and computes totals for a
// requested quantity. The configuration tier table is the single source of
// truth; this service never calls the provider.
type PricingService interface {
	// Preview returns the catalog plus the computed price for quantity.
	// Quantity is clamped into the configured slider range.
	Preview(ctx context.Context, quantity int64) (*dto.PricingPreviewResponse, error)
}

type pricingService struct {
	config *config.Configuration
	table  pricing.TierTable
	log    *logger.Logger
}

func NewPricingService(cfg *config.Configuration, log *logger.Logger) (PricingService, error) {
	table, err := cfg.Pricing.TierTable()
	if err != nil {
		return nil, err
	}
	return &pricingService{
		config: cfg,
		table:  table,
		log:    log,
	}, nil
}

func (s *pricingService) Preview(ctx context.Context, quantity int64) (*dto.PricingPreviewResponse, error) {
	slider := s.config.Pricing.Slider
	if quantity < slider.MinBots {
		quantity = slider.MinBots
	}
	if slider.MaxBots > 0 && quantity > slider.MaxBots {
		quantity = slider.MaxBots
	}

	total, err := s.table.Price(quantity)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.table.Breakdown(quantity)
	if err != nil {
		return nil, err
	}

	tiers := make([]dto.PriceTierDisplay, 0, len(s.table))
	for _, tier := range s.table {
		display := dto.PriceTierDisplay{
			UnitAmount:        tier.UnitAmount,
			UnitAmountDisplay: dto.FormatCents(tier.UnitAmount),
		}
		if tier.UpTo != nil {
			display.UpTo = *tier.UpTo
		} else {
			display.Unbounded = true
		}
		tiers = append(tiers, display)
	}

	perUnit := "0.00"
	if quantity > 0 {
		perUnit = decimal.NewFromInt(total).
			Div(decimal.NewFromInt(quantity)).
			Div(decimal.NewFromInt(100)).
			StringFixed(2)
	}

	return &dto.PricingPreviewResponse{
		Currency: s.config.Pricing.Currency,
		Interval: s.config.Pricing.Interval,
		Slider: dto.SliderResponse{
			MinBots: slider.MinBots,
			MaxBots: slider.MaxBots,
		},
		Tiers:        tiers,
		Quantity:     quantity,
		Total:        total,
		TotalDisplay: dto.FormatCents(total),
		PerUnit:      perUnit,
		Breakdown:    dto.NewTierLineResponses(breakdown),
	}, nil
}
