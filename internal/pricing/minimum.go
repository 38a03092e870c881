package pricing

import (
	"fmt"

	"github.com/noah-isme/toko-checkout/internal/catalog"
)

// MinimumCheck is the outcome of a minimum-purchase validation.
type MinimumCheck struct {
	IsValid         bool   `json:"is_valid"`
	MinimumRequired int    `json:"minimum_required"`
	CurrentQuantity int    `json:"current_quantity"`
	Shortage        int    `json:"shortage"`
	Message         string `json:"message"`
}

// ValidateMinimum enforces the product minimum only when the buyer would be
// charged the wholesale price; everyone else may buy a single unit.
func ValidateMinimum(p catalog.Product, quantity int, who Identity) MinimumCheck {
	required := 1
	if who.ApprovedWholesaler() && HasWholesalePrice(p) {
		required = p.MinimumQuantity()
	}
	check := MinimumCheck{
		IsValid:         quantity >= required,
		MinimumRequired: required,
		CurrentQuantity: quantity,
	}
	if check.IsValid {
		check.Message = fmt.Sprintf("Minimum order requirement met (%d units)", required)
		return check
	}
	check.Shortage = required - quantity
	check.Message = fmt.Sprintf("Minimum %d units required. Add %d more.", required, check.Shortage)
	return check
}
