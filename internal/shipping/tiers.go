package shipping

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/catalog"
)

// Quote is the priced offer of one method for a cart.
type Quote struct {
	MethodID         string
	Name             string
	Description      string
	DeliveryEstimate string
	BasePrice        decimal.Decimal
	Price            decimal.Decimal
	// OriginalPrice keeps the computed price when free shipping zeroes Price.
	OriginalPrice decimal.Decimal
	Tier          *catalog.ShippingTier
	PricingType   catalog.PricingType
	FreeShipping  bool
}

// TierApplied reports whether a tier, rather than the method base price, set the price.
func (q Quote) TierApplied() bool { return q.Tier != nil }

// TierPriority returns the applied tier's priority, or zero.
func (q Quote) TierPriority() int {
	if q.Tier == nil {
		return 0
	}
	return q.Tier.Priority
}

// Aggregate returns the load value a tier of type t is matched against.
func (l Load) Aggregate(t catalog.PricingType) decimal.Decimal {
	if t.Normalize() == catalog.PricingByWeight {
		return l.Weight
	}
	return decimal.NewFromInt(int64(l.Quantity))
}

// SelectTier picks the tier whose range contains the load for its own pricing
// type. Overlaps resolve by priority, then the method's preferred type, then
// the narrower (higher lower-bound) range, then declaration order.
func SelectTier(m catalog.ShippingMethod, load Load) (catalog.ShippingTier, bool) {
	preferred := m.PreferredPricing.Normalize()
	best := -1
	for i, t := range m.Tiers {
		if !t.Contains(load.Aggregate(t.PricingType)) {
			continue
		}
		if best < 0 || outranks(t, m.Tiers[best], preferred) {
			best = i
		}
	}
	if best < 0 {
		return catalog.ShippingTier{}, false
	}
	return m.Tiers[best], true
}

func outranks(a, b catalog.ShippingTier, preferred catalog.PricingType) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	ap, bp := a.PricingType.Normalize() == preferred, b.PricingType.Normalize() == preferred
	if ap != bp {
		return ap
	}
	return a.MinValue.GreaterThan(b.MinValue)
}

// TierPrice prices aggregate under t. Incremental tiers charge whole unit
// blocks above the lower bound, never fractions of one.
func TierPrice(t catalog.ShippingTier, aggregate decimal.Decimal) decimal.Decimal {
	if !t.Incremental() {
		return t.BasePrice
	}
	over := aggregate.Sub(t.MinValue)
	if !over.IsPositive() {
		return t.BasePrice
	}
	blocks := over.Div(t.UnitSize()).Ceil()
	return t.BasePrice.Add(t.IncrementPerUnit.Value.Mul(blocks))
}

// PriceMethod quotes m for load, falling back to the method base price when
// no tier matches.
func PriceMethod(m catalog.ShippingMethod, load Load) Quote {
	q := Quote{
		MethodID:         m.ID,
		Name:             m.Name,
		Description:      m.Description,
		DeliveryEstimate: m.DeliveryEstimate,
		BasePrice:        m.BasePrice,
		Price:            m.BasePrice,
		PricingType:      m.PreferredPricing.Normalize(),
	}
	if t, ok := SelectTier(m, load); ok {
		tier := t
		q.Tier = &tier
		q.PricingType = t.PricingType.Normalize()
		q.Price = TierPrice(t, load.Aggregate(t.PricingType))
	}
	q.OriginalPrice = q.Price
	return q
}

// SortQuotes orders quotes for presentation: higher tier priority first, then
// lower price, then name and id for a stable result.
func SortQuotes(qs []Quote) {
	sort.SliceStable(qs, func(i, j int) bool {
		a, b := qs[i], qs[j]
		if a.TierPriority() != b.TierPriority() {
			return a.TierPriority() > b.TierPriority()
		}
		if c := a.OriginalPrice.Cmp(b.OriginalPrice); c != 0 {
			return c < 0
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.MethodID < b.MethodID
	})
}
