package catalog

import (
	"github.com/shopspring/decimal"
)

// PricingType selects which cart aggregate a shipping tier is matched against.
type PricingType string

const (
	PricingByQuantity PricingType = "quantity"
	PricingByWeight   PricingType = "weight"
)

// Normalize maps unknown values to quantity pricing.
func (p PricingType) Normalize() PricingType {
	if p == PricingByWeight {
		return PricingByWeight
	}
	return PricingByQuantity
}

// Product is a read-only snapshot of a sellable item.
type Product struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Slug               string   `json:"slug,omitempty"`
	Price              Amount   `json:"price"`
	DiscountPrice      Amount   `json:"discount_price"`
	WholesalePrice     Amount   `json:"wholesale_price"`
	MinimumPurchase    Amount   `json:"minimum_purchase"`
	Weight             Amount   `json:"weight"`
	ShippingCategories []string `json:"shipping_categories"`
}

// MinimumQuantity returns the configured minimum purchase, defaulting to 1.
func (p Product) MinimumQuantity() int {
	if !p.MinimumPurchase.Valid {
		return 1
	}
	minimum := p.MinimumPurchase.Value.Floor().IntPart()
	if minimum < 1 {
		return 1
	}
	return int(minimum)
}

// ShippingTier is one row of a method's rate table.
type ShippingTier struct {
	ID                string          `json:"id,omitempty"`
	PricingType       PricingType     `json:"pricing_type"`
	MinValue          decimal.Decimal `json:"min_value"`
	MaxValue          Amount          `json:"max_value"`
	BasePrice         decimal.Decimal `json:"base_price"`
	IncrementPerUnit  Amount          `json:"increment_per_unit"`
	IncrementUnitSize Amount          `json:"increment_unit_size"`
	Priority          int             `json:"priority"`
}

// Contains reports whether v lies in [MinValue, MaxValue]. An absent upper bound is unbounded.
func (t ShippingTier) Contains(v decimal.Decimal) bool {
	if v.LessThan(t.MinValue) {
		return false
	}
	if t.MaxValue.Valid && v.GreaterThan(t.MaxValue.Value) {
		return false
	}
	return true
}

// Incremental reports whether the tier charges per additional unit block.
func (t ShippingTier) Incremental() bool {
	return t.IncrementPerUnit.Positive()
}

// UnitSize returns the increment block size, defaulting to 1.
func (t ShippingTier) UnitSize() decimal.Decimal {
	if t.IncrementUnitSize.Positive() {
		return t.IncrementUnitSize.Value
	}
	return decimal.NewFromInt(1)
}

// ShippingMethod describes a carrier option and its constraints.
type ShippingMethod struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	BasePrice         decimal.Decimal `json:"base_price"`
	MaxQuantity       *int            `json:"max_quantity,omitempty"`
	MaxWeight         Amount          `json:"max_weight"`
	AllowedCategories []string        `json:"allowed_categories"`
	Tiers             []ShippingTier  `json:"tiers"`
	PreferredPricing  PricingType     `json:"preferred_pricing_type"`
	DeliveryEstimate  string          `json:"delivery_estimated_time,omitempty"`
	Active            bool            `json:"active"`
}

// QuantityLimit returns the maximum cart quantity and whether one is configured.
func (m ShippingMethod) QuantityLimit() (int, bool) {
	if m.MaxQuantity == nil || *m.MaxQuantity <= 0 {
		return 0, false
	}
	return *m.MaxQuantity, true
}

// WeightLimit returns the maximum cart weight and whether one is configured.
func (m ShippingMethod) WeightLimit() (decimal.Decimal, bool) {
	if !m.MaxWeight.Positive() {
		return decimal.Zero, false
	}
	return m.MaxWeight.Value, true
}

// FreeShippingRule waives shipping once the cart subtotal reaches ThresholdAmount.
type FreeShippingRule struct {
	ID                   string          `json:"id"`
	ThresholdAmount      decimal.Decimal `json:"threshold_amount"`
	ApplicableCategories []string        `json:"applicable_categories,omitempty"`
	Active               bool            `json:"active"`
}
