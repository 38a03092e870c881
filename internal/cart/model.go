package cart

import (
	"time"

	"github.com/noah-isme/toko-checkout/internal/analysis"
	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// Item is one line of a stored cart.
type Item struct {
	ProductID string         `json:"product_id"`
	Name      string         `json:"name"`
	Quantity  int            `json:"quantity"`
	Weight    catalog.Amount `json:"weight"`
	AddedAt   time.Time      `json:"added_at"`
}

// Snapshot is a complete, versioned cart value. Every mutation writes a new
// snapshot with Version incremented by one.
type Snapshot struct {
	ID         string    `json:"id"`
	Version    int64     `json:"version"`
	OwnerID    string    `json:"owner_id,omitempty"`
	OwnerKind  string    `json:"owner_kind"`
	Items      []Item    `json:"items"`
	CouponCode string    `json:"coupon_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Identity returns the buyer the cart is priced for.
func (s Snapshot) Identity() pricing.Identity {
	kind, _ := pricing.ParseKind(s.OwnerKind)
	return pricing.Identity{Kind: kind, UserID: s.OwnerID}
}

// Analysis converts the snapshot into the analyzer's input.
func (s Snapshot) Analysis() analysis.Cart {
	items := make([]analysis.Item, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, analysis.Item{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, Weight: it.Weight})
	}
	return analysis.Cart{ID: s.ID, Version: s.Version, Items: items}
}

// TotalQuantity sums item quantities.
func (s Snapshot) TotalQuantity() int {
	total := 0
	for _, it := range s.Items {
		total += it.Quantity
	}
	return total
}

func (s *Snapshot) find(productID string) int {
	for i, it := range s.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}
