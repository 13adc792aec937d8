package qrcodes

import (
	"github.com/shopspring/decimal"

	"github.com/elocalpass/elocalpass-backend/internal/configurations"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// ComputeCost prices a pass from the seller's pricing rules, rounded to cents.
func ComputeCost(p configurations.Pricing, guests, days int) decimal.Decimal {
	switch p.Type {
	case enums.PricingFixed:
		return p.FixedPrice.Round(2)
	case enums.PricingVariable:
		extraGuests := decimal.NewFromInt(int64(max(guests-1, 0)))
		extraDays := decimal.NewFromInt(int64(max(days-1, 0)))
		cost := p.BasePrice.
			Add(p.PerGuestIncrease.Mul(extraGuests)).
			Add(p.PerDayIncrease.Mul(extraDays))
		if p.CommissionPercent.IsPositive() {
			cost = cost.Add(cost.Mul(p.CommissionPercent).Div(hundred))
		}
		if p.IncludeTax && p.TaxPercent.IsPositive() {
			cost = cost.Add(cost.Mul(p.TaxPercent).Div(hundred))
		}
		return cost.Round(2)
	default:
		return decimal.Zero
	}
}
