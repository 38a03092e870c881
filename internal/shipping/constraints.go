package shipping

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/catalog"
)

// ViolationType identifies which capacity limit a cart exceeds.
type ViolationType string

const (
	QuantityExceeded ViolationType = "quantity_exceeded"
	WeightExceeded   ViolationType = "weight_exceeded"
)

// Load is the cart-wide aggregate every capacity limit is checked against.
type Load struct {
	Quantity int
	Weight   decimal.Decimal
}

// Violation describes why a method cannot carry the cart.
type Violation struct {
	Type         ViolationType   `json:"type"`
	MaxAllowed   decimal.Decimal `json:"max_allowed"`
	CurrentValue decimal.Decimal `json:"current_value"`
	MethodID     string          `json:"method_id"`
	MethodName   string          `json:"method_name"`
	Message      string          `json:"message"`
}

// CapacityViolations checks m against the whole cart. The result is the same
// for every item in the cart.
func CapacityViolations(m catalog.ShippingMethod, load Load) []Violation {
	var out []Violation
	if limit, ok := m.QuantityLimit(); ok && load.Quantity > limit {
		out = append(out, Violation{
			Type:         QuantityExceeded,
			MaxAllowed:   decimal.NewFromInt(int64(limit)),
			CurrentValue: decimal.NewFromInt(int64(load.Quantity)),
			MethodID:     m.ID,
			MethodName:   m.Name,
			Message:      fmt.Sprintf("Maximum quantity for %s is %d items. Your cart has %d items.", m.Name, limit, load.Quantity),
		})
	}
	if limit, ok := m.WeightLimit(); ok && load.Weight.GreaterThan(limit) {
		out = append(out, Violation{
			Type:         WeightExceeded,
			MaxAllowed:   limit,
			CurrentValue: load.Weight,
			MethodID:     m.ID,
			MethodName:   m.Name,
			Message:      fmt.Sprintf("Maximum weight for %s is %skg. Your cart weighs %skg.", m.Name, limit.String(), load.Weight.String()),
		})
	}
	return out
}

// CategoriesAllowed reports whether m may ship goods in categories. An empty
// allow-list or an uncategorised item is unrestricted.
func CategoriesAllowed(m catalog.ShippingMethod, categories []string) bool {
	if len(m.AllowedCategories) == 0 || len(categories) == 0 {
		return true
	}
	allowed := make(map[string]struct{}, len(m.AllowedCategories))
	for _, c := range m.AllowedCategories {
		allowed[c] = struct{}{}
	}
	for _, c := range categories {
		if _, ok := allowed[c]; ok {
			return true
		}
	}
	return false
}

// Evaluate reports whether m is legal for an item in categories given the
// cart-wide load. Violations are returned even when the method is excluded.
func Evaluate(m catalog.ShippingMethod, categories []string, load Load) (bool, []Violation) {
	violations := CapacityViolations(m, load)
	return len(violations) == 0 && CategoriesAllowed(m, categories), violations
}
