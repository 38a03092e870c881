package catalog

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an optional decimal read from catalog payloads. Missing, null or
// unparsable values stay invalid instead of collapsing to zero.
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

// Some wraps d as a present amount.
func Some(d decimal.Decimal) Amount {
	return Amount{Value: d, Valid: true}
}

// AmountOf parses a decimal string. Blank or malformed input yields an invalid amount.
func AmountOf(raw string) Amount {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Amount{}
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Amount{}
	}
	return Some(d)
}

// AmountPtr converts a nullable text column into an Amount.
func AmountPtr(raw *string) Amount {
	if raw == nil {
		return Amount{}
	}
	return AmountOf(*raw)
}

// Positive reports whether the amount is present and strictly greater than zero.
func (a Amount) Positive() bool {
	return a.Valid && a.Value.IsPositive()
}

// Or returns the value when present, otherwise fallback.
func (a Amount) Or(fallback decimal.Decimal) decimal.Decimal {
	if a.Valid {
		return a.Value
	}
	return fallback
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else
// leaves the amount invalid without failing the surrounding document.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		*a = AmountOf(s)
		return nil
	}
	*a = AmountOf(string(trimmed))
	return nil
}

// MarshalJSON renders present amounts as bare JSON numbers and absent ones as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Value.String()), nil
}
