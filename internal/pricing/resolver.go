package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/catalog"
)

// Classification records which pricing rule produced a unit price.
type Classification string

const (
	WholesaleApplied     Classification = "wholesale_applied"
	WholesaleUnavailable Classification = "wholesale_unavailable"
	Discounted           Classification = "discounted"
	Regular              Classification = "regular"
)

const (
	LabelRegularPrice  = "Regular Price"
	LabelOriginalPrice = "Original Price"
)

var one = decimal.NewFromInt(1)

// Resolution is the price a buyer pays for one unit of a product.
type Resolution struct {
	UnitPrice       decimal.Decimal
	Classification  Classification
	ComparisonPrice catalog.Amount
	ComparisonLabel string
	// Unpriced is set when no rule yields a price: the regular price is
	// missing or malformed and nothing else applies. UnitPrice is zero
	// then and must not be charged.
	Unpriced bool
}

// Options tweak presentation of a resolution.
type Options struct {
	// PrimaryOnly suppresses the comparison price.
	PrimaryOnly bool
}

// Resolve applies the pricing rules in order: wholesale for approved
// wholesalers, discount, then regular price. It never fails; unusable
// numbers are treated as absent and a product left without any price is
// reported through Unpriced rather than sold at zero.
func Resolve(p catalog.Product, who Identity, opts Options) Resolution {
	regular, hasRegular := regularPrice(p)
	discount, hasDiscount := discountPrice(p, regular)

	var res Resolution
	switch {
	case who.ApprovedWholesaler() && HasWholesalePrice(p):
		res = Resolution{UnitPrice: p.WholesalePrice.Value, Classification: WholesaleApplied}
		res.ComparisonPrice, res.ComparisonLabel = catalog.Some(regular), LabelRegularPrice
	case who.ApprovedWholesaler():
		res = Resolution{UnitPrice: regular, Classification: WholesaleUnavailable}
		if hasDiscount {
			res.UnitPrice = discount
			res.ComparisonPrice, res.ComparisonLabel = catalog.Some(regular), LabelOriginalPrice
		}
	case hasDiscount:
		res = Resolution{UnitPrice: discount, Classification: Discounted}
		res.ComparisonPrice, res.ComparisonLabel = catalog.Some(regular), LabelOriginalPrice
	default:
		res = Resolution{UnitPrice: regular, Classification: Regular}
	}
	if res.Classification != WholesaleApplied && !hasDiscount && !hasRegular {
		res.Unpriced = true
	}
	if opts.PrimaryOnly || !hasRegular {
		res.ComparisonPrice, res.ComparisonLabel = catalog.Amount{}, ""
	}
	return res
}

// HasWholesalePrice reports whether the product carries a usable wholesale price (>= 1).
func HasWholesalePrice(p catalog.Product) bool {
	return p.WholesalePrice.Valid && p.WholesalePrice.Value.GreaterThanOrEqual(one)
}

func regularPrice(p catalog.Product) (decimal.Decimal, bool) {
	if p.Price.Valid && !p.Price.Value.IsNegative() {
		return p.Price.Value, true
	}
	return decimal.Zero, false
}

// discountPrice is present only when positive and below a known regular price.
func discountPrice(p catalog.Product, regular decimal.Decimal) (decimal.Decimal, bool) {
	if !p.DiscountPrice.Positive() {
		return decimal.Zero, false
	}
	if p.Price.Valid && regular.IsPositive() && p.DiscountPrice.Value.GreaterThanOrEqual(regular) {
		return decimal.Zero, false
	}
	return p.DiscountPrice.Value, true
}
