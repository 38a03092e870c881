package analysis

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-checkout/internal/catalog"
)

// Reasons an incoming cart item is rejected.
const (
	ReasonMissingProductID = "missing_product_id"
	ReasonInvalidProductID = "invalid_product_id"
	ReasonInvalidQuantity  = "invalid_quantity"
)

// flexID accepts identifiers sent as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	*f = flexID(string(trimmed))
	return nil
}

// ItemPayload is a cart line as clients send it. Clients disagree on the id
// key, so every known spelling is accepted.
type ItemPayload struct {
	ProductID      flexID         `json:"product_id"`
	ProductIDCamel flexID         `json:"productId"`
	ID             flexID         `json:"id"`
	UUID           flexID         `json:"uuid"`
	Quantity       int            `json:"quantity"`
	Name           string         `json:"name"`
	Price          catalog.Amount `json:"price"`
	Weight         catalog.Amount `json:"weight"`
}

// Identifier returns the first non-empty product id spelling.
func (p ItemPayload) Identifier() string {
	for _, v := range []flexID{p.ProductID, p.ProductIDCamel, p.ID, p.UUID} {
		if s := strings.TrimSpace(string(v)); s != "" {
			return s
		}
	}
	return ""
}

// InvalidItem describes a rejected request item.
type InvalidItem struct {
	Index     int    `json:"index"`
	ProductID string `json:"product_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Reason    string `json:"reason"`
}

// NormalizeItems converts payload items into analyzer items. Items without a
// UUID product id or with a quantity below one are reported, not analysed.
func NormalizeItems(payload []ItemPayload) ([]Item, []InvalidItem) {
	items := make([]Item, 0, len(payload))
	invalid := []InvalidItem{}
	for i, p := range payload {
		id := p.Identifier()
		parsed, err := uuid.Parse(id)
		switch {
		case id == "":
			invalid = append(invalid, InvalidItem{Index: i, Name: p.Name, Reason: ReasonMissingProductID})
			continue
		case err != nil:
			invalid = append(invalid, InvalidItem{Index: i, ProductID: id, Name: p.Name, Reason: ReasonInvalidProductID})
			continue
		case p.Quantity < 1:
			invalid = append(invalid, InvalidItem{Index: i, ProductID: id, Name: p.Name, Reason: ReasonInvalidQuantity})
			continue
		}
		items = append(items, Item{
			ProductID: parsed.String(),
			Name:      strings.TrimSpace(p.Name),
			Quantity:  p.Quantity,
			Weight:    p.Weight,
		})
	}
	return items, invalid
}
