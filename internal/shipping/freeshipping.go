package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/catalog"
)

// FreeShipping is the eligibility decision for a cart.
type FreeShipping struct {
	Eligible bool
	// Rule is the qualifying rule; nil unless Eligible.
	Rule *catalog.FreeShippingRule
	// Next is the nearest unmet rule when not Eligible.
	Next *catalog.FreeShippingRule
	// AmountNeeded is how much more subtotal reaches Next.
	AmountNeeded decimal.Decimal
	// Savings is the cheapest shipping price waived by the rule.
	Savings decimal.Decimal
}

// CheckFreeShipping finds the highest-threshold rule met by subtotal that
// applies to the cart categories. Without one, it reports the lowest
// applicable threshold still ahead of the cart.
func CheckFreeShipping(rules []catalog.FreeShippingRule, subtotal decimal.Decimal, categories []string) FreeShipping {
	out := FreeShipping{AmountNeeded: decimal.Zero, Savings: decimal.Zero}
	var met, next *catalog.FreeShippingRule
	for i := range rules {
		r := rules[i]
		if !ruleApplies(r, categories) {
			continue
		}
		if subtotal.GreaterThanOrEqual(r.ThresholdAmount) {
			if met == nil || r.ThresholdAmount.GreaterThan(met.ThresholdAmount) {
				met = &r
			}
			continue
		}
		if next == nil || r.ThresholdAmount.LessThan(next.ThresholdAmount) {
			next = &r
		}
	}
	switch {
	case met != nil:
		out.Eligible = true
		out.Rule = met
	case next != nil:
		out.Next = next
		out.AmountNeeded = next.ThresholdAmount.Sub(subtotal)
	}
	return out
}

// ApplyFreeShipping zeroes every quote price when fs is eligible. The tier
// price is kept in OriginalPrice and the cheapest one is reported as savings.
func ApplyFreeShipping(quotes []Quote, fs FreeShipping) ([]Quote, FreeShipping) {
	if !fs.Eligible {
		return quotes, fs
	}
	out := make([]Quote, len(quotes))
	for i, q := range quotes {
		if i == 0 || q.OriginalPrice.LessThan(fs.Savings) {
			fs.Savings = q.OriginalPrice
		}
		q.Price = decimal.Zero
		q.FreeShipping = true
		out[i] = q
	}
	return out, fs
}

func ruleApplies(r catalog.FreeShippingRule, categories []string) bool {
	if len(r.ApplicableCategories) == 0 {
		return true
	}
	want := make(map[string]struct{}, len(r.ApplicableCategories))
	for _, c := range r.ApplicableCategories {
		want[c] = struct{}{}
	}
	for _, c := range categories {
		if _, ok := want[c]; ok {
			return true
		}
	}
	return false
}
