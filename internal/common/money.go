package common

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money renders an amount as a JSON number with two decimal places.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// Measure renders a quantity such as weight as a JSON number, trimmed to three decimals.
func Measure(d decimal.Decimal) json.Number {
	return json.Number(d.Round(3).String())
}
