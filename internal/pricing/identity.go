package pricing

import "strings"

// Kind enumerates the buyer categories that influence price resolution.
type Kind int

const (
	Anonymous Kind = iota
	Customer
	WholesalerPending
	WholesalerApproved
)

func (k Kind) String() string {
	switch k {
	case Customer:
		return "customer"
	case WholesalerPending:
		return "wholesaler_pending"
	case WholesalerApproved:
		return "wholesaler_approved"
	default:
		return "anonymous"
	}
}

// ParseKind maps the textual form produced by String back to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "", "anonymous":
		return Anonymous, true
	case "customer":
		return Customer, true
	case "wholesaler_pending":
		return WholesalerPending, true
	case "wholesaler_approved":
		return WholesalerApproved, true
	default:
		return Anonymous, false
	}
}

// Identity is the resolved buyer. The zero value is an anonymous visitor.
type Identity struct {
	Kind   Kind
	UserID string
}

// ApprovedWholesaler reports whether wholesale pricing may be offered.
func (i Identity) ApprovedWholesaler() bool {
	return i.Kind == WholesalerApproved
}
