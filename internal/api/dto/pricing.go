package dto

import (
	"github.com/shopspring/decimal"
	"github.com/vexa-ai/billing/internal/pricing"
)

// PricingPreviewResponse renders the static catalog plus the computed price
// for a requested quantity. Monetary amounts are in cents; Display fields are
// formatted major-unit strings for the pricing page.
type PricingPreviewResponse struct {
	Currency string             `json:"currency"`
	Interval string             `json:"interval"`
	Slider   SliderResponse     `json:"slider"`
	Tiers    []PriceTierDisplay `json:"tiers"`

	Quantity     int64              `json:"quantity"`
	Total        int64              `json:"total"`
	TotalDisplay string             `json:"total_display"`
	PerUnit      string             `json:"per_unit_display"`
	Breakdown    []TierLineResponse `json:"breakdown"`
}

type SliderResponse struct {
	MinBots int64 `json:"min_bots"`
	MaxBots int64 `json:"max_bots"`
}

type PriceTierDisplay struct {
	// UpTo is the inclusive upper bound, 0 for the unbounded final tier
	UpTo              int64  `json:"up_to,omitempty"`
	Unbounded         bool   `json:"unbounded,omitempty"`
	UnitAmount        int64  `json:"unit_amount"`
	UnitAmountDisplay string `json:"unit_amount_display"`
}

type TierLineResponse struct {
	TierRange       string `json:"tier_range"`
	Units           int64  `json:"units"`
	UnitAmount      int64  `json:"unit_amount"`
	Subtotal        int64  `json:"subtotal"`
	SubtotalDisplay string `json:"subtotal_display"`
}

// FormatCents renders a cent amount as a major-unit decimal string, e.g.
// 1200 -> "12.00"
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// NewTierLineResponses converts a pricing breakdown into display lines
func NewTierLineResponses(lines []pricing.TierBreakdown) []TierLineResponse {
	out := make([]TierLineResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, TierLineResponse{
			TierRange:       line.TierRange,
			Units:           line.Units,
			UnitAmount:      line.UnitAmount,
			Subtotal:        line.Subtotal,
			SubtotalDisplay: FormatCents(line.Subtotal),
		})
	}
	return out
}
