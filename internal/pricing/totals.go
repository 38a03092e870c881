package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/catalog"
)

// Line pairs a cart quantity with the resolved unit price.
type Line struct {
	ProductID  string
	Quantity   int
	Resolution Resolution
	UnitWeight catalog.Amount
}

// Subtotal returns the line total at full precision.
func (l Line) Subtotal() decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.Resolution.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Summary aggregates cart-wide figures. Values keep full precision; round
// with Round only when presenting them.
type Summary struct {
	Subtotal      decimal.Decimal
	TotalQuantity int
	TotalWeight   decimal.Decimal
}

// Totals accumulates subtotal, quantity and weight over lines in order.
func Totals(lines []Line) Summary {
	sum := Summary{Subtotal: decimal.Zero, TotalWeight: decimal.Zero}
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(l.Quantity))
		sum.Subtotal = sum.Subtotal.Add(l.Resolution.UnitPrice.Mul(qty))
		sum.TotalQuantity += l.Quantity
		if l.UnitWeight.Valid && l.UnitWeight.Value.IsPositive() {
			sum.TotalWeight = sum.TotalWeight.Add(l.UnitWeight.Value.Mul(qty))
		}
	}
	return sum
}

// Round rounds a money value to two decimal places for presentation.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
