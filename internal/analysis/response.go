package analysis

import (
	"encoding/json"

	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/shipping"
)

// MethodView is the wire form of a shipping quote.
type MethodView struct {
	ID                    string              `json:"id"`
	Name                  string              `json:"name"`
	Description           string              `json:"description,omitempty"`
	BasePrice             json.Number         `json:"base_price"`
	CalculatedPrice       json.Number         `json:"calculated_price"`
	OriginalPrice         json.Number         `json:"original_price"`
	TierApplied           bool                `json:"tier_applied"`
	TierPriority          int                 `json:"tier_priority"`
	PricingMethodUsed     catalog.PricingType `json:"pricing_method_used"`
	DeliveryEstimatedTime string              `json:"delivery_estimated_time,omitempty"`
	IsFreeShippingRule    bool                `json:"is_free_shipping_rule"`
}

// GroupItemView is an item inside a split-shipping group.
type GroupItemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
}

// GroupView is one shipment of a split cart.
type GroupView struct {
	Items            []GroupItemView `json:"items"`
	AvailableMethods []MethodView    `json:"available_methods"`
}

// FreeShippingRuleView describes the qualifying or nearest free-shipping rule.
type FreeShippingRuleView struct {
	ID                   string      `json:"id"`
	ThresholdAmount      json.Number `json:"threshold_amount"`
	ApplicableCategories []string    `json:"applicable_categories"`
}

// ViolationView is the wire form of a capacity violation.
type ViolationView struct {
	Type         shipping.ViolationType `json:"type"`
	MaxAllowed   json.Number            `json:"max_allowed"`
	CurrentValue json.Number            `json:"current_value"`
	MethodID     string                 `json:"method_id"`
	MethodName   string                 `json:"method_name"`
	Message      string                 `json:"message"`
}

// CartSummaryView carries cart aggregates.
type CartSummaryView struct {
	TotalQuantity      int                 `json:"total_quantity"`
	TotalWeight        json.Number         `json:"total_weight"`
	Subtotal           json.Number         `json:"subtotal"`
	PricingMethodUsed  catalog.PricingType `json:"pricing_method_used"`
	ShippingCategories []string            `json:"shipping_categories"`
}

// Response is the body of a shipping analysis.
type Response struct {
	Success               bool                  `json:"success"`
	State                 State                 `json:"state"`
	Error                 *string               `json:"error"`
	CartID                string                `json:"cart_id,omitempty"`
	CartVersion           int64                 `json:"cart_version,omitempty"`
	FreeShippingRule      *FreeShippingRuleView `json:"free_shipping_rule"`
	NextFreeShippingRule  *FreeShippingRuleView `json:"next_free_shipping_rule"`
	FreeShippingEligible  bool                  `json:"free_shipping_eligible"`
	FreeShippingSavings   json.Number           `json:"free_shipping_savings"`
	AmountNeededForFree   json.Number           `json:"amount_needed_for_free_shipping"`
	RequiresSplitShipping bool                  `json:"requires_split_shipping"`
	AvailableMethods      []MethodView          `json:"available_shipping_methods"`
	ShippingGroups        []GroupView           `json:"shipping_groups"`
	MissingProducts       []string              `json:"missing_products"`
	UnpricedProducts      []string              `json:"unpriced_products"`
	ConstraintViolations  []ViolationView       `json:"constraint_violations"`
	InvalidItems          []InvalidItem         `json:"invalid_items"`
	CartAnalysis          CartSummaryView       `json:"cart_analysis"`
}

// NewResponse renders res. Degraded results keep the same shape with their
// state and error set so clients never need a separate fallback format.
func NewResponse(res Result, invalid []InvalidItem) Response {
	if invalid == nil {
		invalid = []InvalidItem{}
	}
	out := Response{
		Success:               true,
		State:                 res.State,
		CartID:                res.CartID,
		CartVersion:           res.CartVersion,
		FreeShippingEligible:  res.FreeShipping.Eligible,
		FreeShippingSavings:   common.Money(res.FreeShipping.Savings),
		AmountNeededForFree:   common.Money(res.FreeShipping.AmountNeeded),
		RequiresSplitShipping: res.RequiresSplit,
		AvailableMethods:      MethodViews(res.Methods),
		ShippingGroups:        []GroupView{},
		MissingProducts:       nonNil(res.MissingProducts),
		UnpricedProducts:      nonNil(res.UnpricedProducts),
		ConstraintViolations:  make([]ViolationView, 0, len(res.Violations)),
		InvalidItems:          invalid,
		CartAnalysis: CartSummaryView{
			TotalQuantity:      res.Totals.TotalQuantity,
			TotalWeight:        common.Measure(res.Totals.TotalWeight),
			Subtotal:           common.Money(res.Totals.Subtotal),
			PricingMethodUsed:  res.PricingMethodUsed,
			ShippingCategories: nonNil(res.Categories),
		},
	}
	if res.Err != nil {
		msg := res.Err.Error()
		out.Error = &msg
	} else if len(res.MissingProducts) > 0 {
		msg := "some products are no longer available"
		out.Error = &msg
	} else if len(res.UnpricedProducts) > 0 {
		msg := "some products have no usable price"
		out.Error = &msg
	}
	out.FreeShippingRule = ruleView(res.FreeShipping.Rule)
	out.NextFreeShippingRule = ruleView(res.FreeShipping.Next)
	for _, g := range res.Groups {
		view := GroupView{Items: make([]GroupItemView, 0, len(g.Items)), AvailableMethods: MethodViews(g.Methods)}
		for _, it := range g.Items {
			view.Items = append(view.Items, GroupItemView{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity})
		}
		out.ShippingGroups = append(out.ShippingGroups, view)
	}
	for _, v := range res.Violations {
		out.ConstraintViolations = append(out.ConstraintViolations, ViolationView{
			Type:         v.Type,
			MaxAllowed:   common.Measure(v.MaxAllowed),
			CurrentValue: common.Measure(v.CurrentValue),
			MethodID:     v.MethodID,
			MethodName:   v.MethodName,
			Message:      v.Message,
		})
	}
	return out
}

// MethodViews renders quotes in their presentation order.
func MethodViews(quotes []shipping.Quote) []MethodView {
	out := make([]MethodView, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, MethodView{
			ID:                    q.MethodID,
			Name:                  q.Name,
			Description:           q.Description,
			BasePrice:             common.Money(q.BasePrice),
			CalculatedPrice:       common.Money(q.Price),
			OriginalPrice:         common.Money(q.OriginalPrice),
			TierApplied:           q.TierApplied(),
			TierPriority:          q.TierPriority(),
			PricingMethodUsed:     q.PricingType,
			DeliveryEstimatedTime: q.DeliveryEstimate,
			IsFreeShippingRule:    q.FreeShipping,
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func ruleView(r *catalog.FreeShippingRule) *FreeShippingRuleView {
	if r == nil {
		return nil
	}
	return &FreeShippingRuleView{
		ID:                   r.ID,
		ThresholdAmount:      common.Money(r.ThresholdAmount),
		ApplicableCategories: nonNil(r.ApplicableCategories),
	}
}
