package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/identity"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/pricing"
	"github.com/noah-isme/toko-checkout/internal/shipping"
)

// Handler exposes checkout analysis endpoints.
type Handler struct {
	Analyzer *Analyzer
	Coupons  coupon.Finder
	Currency string
	Logger   zerolog.Logger
	Now      func() time.Time
}

type analysisRequest struct {
	CartItems []ItemPayload `json:"cart_items" validate:"required,min=1,max=500"`
}

// ShippingAnalysis handles POST /checkout/shipping-analysis.
func (h *Handler) ShippingAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	items, invalid, ok := h.normalize(w, req.CartItems)
	if !ok {
		return
	}
	res := h.Analyzer.Analyze(r.Context(), Cart{Items: items}, identity.FromContext(r.Context()))
	annotate(r, res, items)
	common.JSON(w, http.StatusOK, NewResponse(res, invalid))
}

type calculationRequest struct {
	CartItems        []ItemPayload `json:"cart_items" validate:"required,min=1,max=500"`
	CouponCode       string        `json:"coupon_code" validate:"max=64"`
	SelectedMethodID string        `json:"selected_shipping_method_id" validate:"max=128"`
}

// Calculation handles POST /checkout/calculation: analysis, totals, coupon and
// the selected shipping method in one response.
func (h *Handler) Calculation(w http.ResponseWriter, r *http.Request) {
	var req calculationRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	items, invalid, ok := h.normalize(w, req.CartItems)
	if !ok {
		return
	}
	res := h.Analyzer.Analyze(r.Context(), Cart{Items: items}, identity.FromContext(r.Context()))
	annotate(r, res, items)

	var found *coupon.Coupon
	if code := strings.TrimSpace(req.CouponCode); code != "" && h.Coupons != nil {
		c, err := h.Coupons.ByCode(r.Context(), code)
		switch {
		case err == nil:
			found = &c
		case errors.Is(err, coupon.ErrNotFound):
			obs.CountCoupon("not_found")
		default:
			h.Logger.Error().Err(err).Str("coupon_code", code).Msg("coupon_lookup_failed")
			common.WriteAppError(w, common.Internal("unable to load coupon", err))
			return
		}
	}
	calc := Calculate(res, req.SelectedMethodID, strings.TrimSpace(req.CouponCode), found, h.now())
	if found != nil {
		obs.CountCoupon(couponLabel(calc.Coupon))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.renderCalculation(calc, invalid)})
}

type minimumRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// MinimumCheck handles POST /pricing/minimum-check for the calling buyer.
func (h *Handler) MinimumCheck(w http.ResponseWriter, r *http.Request) {
	var req minimumRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	id := strings.ToLower(req.ProductID)
	products, err := h.Analyzer.Source.Products(r.Context(), []string{id})
	if err != nil {
		h.Logger.Warn().Err(err).Str("product_id", id).Msg("minimum_check_catalog_unavailable")
		common.JSONError(w, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "catalog is temporarily unavailable", nil)
		return
	}
	p, ok := products[id]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found", nil)
		return
	}
	who := identity.FromContext(r.Context())
	res := pricing.Resolve(p, who, pricing.Options{})
	if res.Unpriced {
		common.JSONError(w, http.StatusUnprocessableEntity, "PRODUCT_UNPRICED", "product has no usable price", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"product_id":           p.ID,
		"unit_price":           common.Money(res.UnitPrice),
		"price_classification": res.Classification,
		"minimum_check":        pricing.ValidateMinimum(p, req.Quantity, who),
	}})
}

func (h *Handler) normalize(w http.ResponseWriter, payload []ItemPayload) ([]Item, []InvalidItem, bool) {
	items, invalid := NormalizeItems(payload)
	if len(items) == 0 {
		common.JSONError(w, http.StatusBadRequest, "INVALID_CART_ITEMS", "no valid cart items", map[string]any{"invalid_items": invalid})
		return nil, nil, false
	}
	if len(invalid) > 0 {
		h.Logger.Warn().Int("invalid_items", len(invalid)).Msg("cart_items_rejected")
	}
	return items, invalid, true
}

func annotate(r *http.Request, res Result, items []Item) {
	obs.Annotate(r.Context(), "analysis_state", string(res.State))
	obs.Annotate(r.Context(), "cart_items", strconv.Itoa(len(items)))
	if res.RequiresSplit {
		obs.Annotate(r.Context(), "split_shipping", "true")
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// CalculationResult is a priced checkout with shipping and coupon applied.
type CalculationResult struct {
	Analysis        Result
	Selected        *shipping.Quote
	ShippingCost    decimal.Decimal
	CouponCode      string
	CouponFound     *coupon.Coupon
	Coupon          coupon.Result
	Recommendations Recommendations
}

// Recommendation is a single hint shown next to the checkout totals.
type Recommendation struct {
	Type         string       `json:"type"`
	Message      string       `json:"message"`
	Severity     string       `json:"severity,omitempty"`
	ProductID    string       `json:"product_id,omitempty"`
	AmountNeeded *json.Number `json:"amount_needed,omitempty"`
	Threshold    *json.Number `json:"threshold,omitempty"`
}

// Recommendations groups savings hints and warnings.
type Recommendations struct {
	SavingsOpportunities []Recommendation `json:"savings_opportunities"`
	Warnings             []Recommendation `json:"warnings"`
}

// Calculate applies the selected method and coupon to an analysis. An unknown
// or empty selection falls back to the first offered method.
func Calculate(res Result, selectedID, couponCode string, c *coupon.Coupon, now time.Time) CalculationResult {
	out := CalculationResult{
		Analysis:     res,
		ShippingCost: decimal.Zero,
		CouponCode:   couponCode,
		CouponFound:  c,
		Recommendations: Recommendations{
			SavingsOpportunities: []Recommendation{},
			Warnings:             []Recommendation{},
		},
	}
	for i := range res.Methods {
		if res.Methods[i].MethodID == selectedID {
			q := res.Methods[i]
			out.Selected = &q
			break
		}
	}
	if out.Selected == nil && len(res.Methods) > 0 {
		q := res.Methods[0]
		out.Selected = &q
	}
	if out.Selected != nil {
		out.ShippingCost = out.Selected.Price
	}
	out.Coupon = coupon.Apply(coupon.Input{
		Subtotal:      res.Totals.Subtotal,
		Shipping:      out.ShippingCost,
		TotalQuantity: res.Totals.TotalQuantity,
		Now:           now,
	}, c)

	fs := res.FreeShipping
	if !fs.Eligible && fs.Next != nil && fs.AmountNeeded.IsPositive() {
		needed, threshold := common.Money(fs.AmountNeeded), common.Money(fs.Next.ThresholdAmount)
		out.Recommendations.SavingsOpportunities = append(out.Recommendations.SavingsOpportunities, Recommendation{
			Type:         "free_shipping",
			Message:      fmt.Sprintf("Add %s more for free shipping", needed),
			AmountNeeded: &needed,
			Threshold:    &threshold,
		})
	}
	if res.RequiresSplit {
		out.Recommendations.Warnings = append(out.Recommendations.Warnings, Recommendation{
			Type:     "split_shipping",
			Message:  "Items require different shipping methods - split shipment may be needed",
			Severity: "warning",
		})
	} else if len(res.Methods) == 0 && res.State == Resolved {
		out.Recommendations.Warnings = append(out.Recommendations.Warnings, Recommendation{
			Type:     "shipping_unavailable",
			Message:  "No shipping method can carry this cart",
			Severity: "error",
		})
	}
	for _, l := range res.Lines {
		if !l.Minimum.IsValid {
			out.Recommendations.Warnings = append(out.Recommendations.Warnings, Recommendation{
				Type:      "minimum_purchase",
				Message:   l.Minimum.Message,
				Severity:  "error",
				ProductID: l.Product.ID,
			})
		}
	}
	return out
}

func (h *Handler) renderCalculation(calc CalculationResult, invalid []InvalidItem) map[string]any {
	res := calc.Analysis
	analysis := NewResponse(res, invalid)

	lines := make([]map[string]any, 0, len(res.Lines))
	for _, l := range res.Lines {
		line := map[string]any{
			"product_id":           l.Product.ID,
			"name":                 l.Item.Name,
			"quantity":             l.Item.Quantity,
			"unit_price":           common.Money(l.Resolution.UnitPrice),
			"line_total":           common.Money(l.Subtotal()),
			"price_classification": l.Resolution.Classification,
			"minimum_check":        l.Minimum,
		}
		if l.Resolution.ComparisonPrice.Valid {
			line["comparison_price"] = common.Money(l.Resolution.ComparisonPrice.Value)
			line["comparison_label"] = l.Resolution.ComparisonLabel
		}
		lines = append(lines, line)
	}

	var selected any
	if calc.Selected != nil {
		selected = MethodViews([]shipping.Quote{*calc.Selected})[0]
	}
	var couponDetails any
	switch {
	case calc.CouponFound != nil:
		couponDetails = coupon.Details(*calc.CouponFound, calc.Coupon)
	case calc.CouponCode != "":
		couponDetails = map[string]any{"code": calc.CouponCode, "valid": false, "reason": "not_found"}
	}
	currency := h.Currency
	if currency == "" {
		currency = "IDR"
	}

	return map[string]any{
		"state":             analysis.State,
		"error":             analysis.Error,
		"missing_products":  analysis.MissingProducts,
		"unpriced_products": analysis.UnpricedProducts,
		"invalid_items":     analysis.InvalidItems,
		"calculation_summary": map[string]any{
			"cart_subtotal":     common.Money(res.Totals.Subtotal),
			"total_quantity":    res.Totals.TotalQuantity,
			"total_weight":      common.Measure(res.Totals.TotalWeight),
			"shipping_cost":     common.Money(calc.ShippingCost),
			"discount_amount":   common.Money(calc.Coupon.Discount),
			"shipping_discount": common.Money(calc.Coupon.ShippingDiscount),
			"final_total":       common.Money(calc.Coupon.Total),
			"currency":          currency,
		},
		"lines": lines,
		"shipping_details": map[string]any{
			"available_methods":       analysis.AvailableMethods,
			"selected_method":         selected,
			"requires_split_shipping": analysis.RequiresSplitShipping,
			"shipping_groups":         analysis.ShippingGroups,
			"free_shipping_eligible":  analysis.FreeShippingEligible,
			"free_shipping_savings":   analysis.FreeShippingSavings,
			"qualifying_free_rule":    analysis.FreeShippingRule,
			"constraint_violations":   analysis.ConstraintViolations,
		},
		"coupon_details":  couponDetails,
		"recommendations": calc.Recommendations,
	}
}

func couponLabel(res coupon.Result) string {
	if res.Applied {
		return "applied"
	}
	return string(res.Reason)
}
