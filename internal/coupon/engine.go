package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type selects how DiscountValue is interpreted.
type Type string

const (
	Percentage Type = "percentage"
	Fixed      Type = "fixed"
)

// Scope selects which amount the discount is taken from.
type Scope string

const (
	ScopeSubtotal Scope = "subtotal"
	ScopeShipping Scope = "shipping"
)

// Reason explains why a coupon produced no discount.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNoCoupon          Reason = "no_coupon"
	ReasonInactive          Reason = "inactive"
	ReasonNotYetValid       Reason = "not_yet_valid"
	ReasonExpired           Reason = "expired"
	ReasonMinPurchaseUnmet  Reason = "min_purchase_unmet"
	ReasonMinQuantityUnmet  Reason = "min_quantity_unmet"
	ReasonNothingToDiscount Reason = "nothing_to_discount"
)

var hundred = decimal.NewFromInt(100)

// Coupon captures the runtime rule of a discount code.
type Coupon struct {
	Code          string          `json:"code"`
	Type          Type            `json:"type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	MinPurchase   decimal.Decimal `json:"min_purchase"`
	AppliesTo     Scope           `json:"applies_to"`
	MinQuantity   int             `json:"min_quantity"`
	ValidFrom     *time.Time      `json:"valid_from,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	Active        bool            `json:"active"`
}

// Input is the cart state a coupon is evaluated against.
type Input struct {
	Subtotal      decimal.Decimal
	Shipping      decimal.Decimal
	TotalQuantity int
	Now           time.Time
}

// Result is the outcome of applying a coupon. Discount is taken from the
// subtotal and ShippingDiscount from shipping; Total never goes below zero.
type Result struct {
	Applied          bool
	Discount         decimal.Decimal
	ShippingDiscount decimal.Decimal
	Total            decimal.Decimal
	Reason           Reason
}

// Eligible reports why c cannot be used for in, or ReasonNone.
func (c Coupon) Eligible(in Input) Reason {
	if !c.Active {
		return ReasonInactive
	}
	if c.ValidFrom != nil && !in.Now.IsZero() && in.Now.Before(*c.ValidFrom) {
		return ReasonNotYetValid
	}
	if c.ExpiresAt != nil && !in.Now.IsZero() && in.Now.After(*c.ExpiresAt) {
		return ReasonExpired
	}
	if in.Subtotal.LessThan(c.MinPurchase) {
		return ReasonMinPurchaseUnmet
	}
	if c.MinQuantity > 1 && in.TotalQuantity < c.MinQuantity {
		return ReasonMinQuantityUnmet
	}
	return ReasonNone
}

// Apply evaluates c (which may be nil) against in. Ineligible coupons yield a
// zero discount with a Reason, never an error.
func Apply(in Input, c *Coupon) Result {
	subtotal := nonNegative(in.Subtotal)
	shipping := nonNegative(in.Shipping)
	res := Result{Discount: decimal.Zero, ShippingDiscount: decimal.Zero}

	switch {
	case c == nil:
		res.Reason = ReasonNoCoupon
	default:
		in.Subtotal = subtotal
		res.Reason = c.Eligible(in)
	}
	if res.Reason == ReasonNone {
		if c.AppliesTo == ScopeShipping {
			res.ShippingDiscount = Compute(shipping, *c)
		} else {
			res.Discount = Compute(subtotal, *c)
		}
		res.Applied = res.Discount.IsPositive() || res.ShippingDiscount.IsPositive()
		if !res.Applied {
			res.Reason = ReasonNothingToDiscount
		}
	}
	res.Total = nonNegative(subtotal.Add(shipping).Sub(res.Discount).Sub(res.ShippingDiscount))
	return res
}

// Compute returns the discount c grants on base, clamped to [0, base].
func Compute(base decimal.Decimal, c Coupon) decimal.Decimal {
	if !base.IsPositive() || !c.DiscountValue.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch Type(strings.ToLower(string(c.Type))) {
	case Percentage:
		pct := decimal.Min(c.DiscountValue, hundred)
		discount = base.Mul(pct).Div(hundred)
	case Fixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}
	return decimal.Min(discount, base)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
