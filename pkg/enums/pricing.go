package enums

// PricingType mirrors the seller configuration pricing modes.
type PricingType string

const (
	PricingFixed    PricingType = "FIXED"
	PricingVariable PricingType = "VARIABLE"
	PricingFree     PricingType = "FREE"
)

func (p PricingType) IsValid() bool {
	switch p {
	case PricingFixed, PricingVariable, PricingFree:
		return true
	default:
		return false
	}
}

// DiscountType selects how a rebuy discount value is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)
