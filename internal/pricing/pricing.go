package pricing

import (
	"fmt"

	ierr "github.com/vexa-ai/billing/internal/errors"
)

// Tier is one volume pricing tier. UpTo is the cumulative upper bound of the
// tier (inclusive); nil means unbounded and is only valid on the final tier.
// UnitAmount is the per-unit price in minor currency units.
type Tier struct {
	UpTo       *int64
	UnitAmount int64
}

// TierTable is an ordered tier sequence partitioning the non-negative
// integers with no gaps and no overlaps: strictly increasing bounds, final
// tier unbounded.
type TierTable []Tier

// TierBreakdown is the per-tier share of a priced quantity
type TierBreakdown struct {
	// TierRange is a display label for the cumulative range, e.g. "1-5" or "201+"
	TierRange string
	// Units is how many of the quantity's units fall into this tier
	Units int64
	// UnitAmount is the tier's per-unit price in minor units
	UnitAmount int64
	// Subtotal is Units * UnitAmount in minor units
	Subtotal int64
}

// Validate fails fast on malformed tables so a bad catalog config can never
// silently misprice.
func (t TierTable) Validate() error {
	if len(t) == 0 {
		return ierr.NewError("pricing tier table is empty").
			WithHint("At least one tier with an unbounded upper bound is required").
			Mark(ierr.ErrValidation)
	}

	var prev int64
	for i, tier := range t {
		if tier.UnitAmount < 0 {
			return ierr.NewError("pricing tier has a negative unit amount").
				WithReportableDetails(map[string]any{"tier_index": i}).
				Mark(ierr.ErrValidation)
		}
		if tier.UpTo == nil {
			if i != len(t)-1 {
				return ierr.NewError("unbounded pricing tier is not the final tier").
					WithReportableDetails(map[string]any{"tier_index": i}).
					Mark(ierr.ErrValidation)
			}
			continue
		}
		if *tier.UpTo <= prev {
			return ierr.NewError("pricing tier bounds are not strictly increasing").
				WithReportableDetails(map[string]any{
					"tier_index":     i,
					"upper_bound":    *tier.UpTo,
					"previous_bound": prev,
				}).
				Mark(ierr.ErrValidation)
		}
		prev = *tier.UpTo
	}

	if t[len(t)-1].UpTo != nil {
		return ierr.NewError("final pricing tier must be unbounded").
			WithHint("The tier table must cover every quantity; end it with an inf tier").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// Price computes the total for quantity units in minor currency units using
// volume semantics: each unit is priced by the tier its cumulative position
// falls into. Non-positive quantities price to zero.
func (t TierTable) Price(quantity int64) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	if quantity <= 0 {
		return 0, nil
	}

	var total int64
	remaining := quantity
	var prevBound int64
	for _, tier := range t {
		if tier.UpTo == nil {
			total += remaining * tier.UnitAmount
			break
		}
		units := min(remaining, *tier.UpTo-prevBound)
		total += units * tier.UnitAmount
		remaining -= units
		prevBound = *tier.UpTo
		if remaining <= 0 {
			break
		}
	}

	return total, nil
}

// Breakdown returns the per-tier partition of quantity units, in tier order.
// Non-positive quantities yield an empty breakdown.
func (t TierTable) Breakdown(quantity int64) ([]TierBreakdown, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return []TierBreakdown{}, nil
	}

	breakdown := make([]TierBreakdown, 0, len(t))
	remaining := quantity
	var prevBound int64
	for _, tier := range t {
		if tier.UpTo == nil {
			breakdown = append(breakdown, TierBreakdown{
				TierRange:  fmt.Sprintf("%d+", prevBound+1),
				Units:      remaining,
				UnitAmount: tier.UnitAmount,
				Subtotal:   remaining * tier.UnitAmount,
			})
			break
		}
		units := min(remaining, *tier.UpTo-prevBound)
		if units > 0 {
			breakdown = append(breakdown, TierBreakdown{
				TierRange:  fmt.Sprintf("%d-%d", prevBound+1, *tier.UpTo),
				Units:      units,
				UnitAmount: tier.UnitAmount,
				Subtotal:   units * tier.UnitAmount,
			})
			remaining -= units
		}
		prevBound = *tier.UpTo
		if remaining <= 0 {
			break
		}
	}

	return breakdown, nil
}
