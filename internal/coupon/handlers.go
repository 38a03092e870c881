package coupon

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/obs"
)

// Handler exposes coupon evaluation over HTTP.
type Handler struct {
	Coupons Finder
	Now     func() time.Time
}

type validateRequest struct {
	Code          string          `json:"code" validate:"required,max=64"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
	TotalQuantity int             `json:"total_quantity" validate:"gte=0"`
}

// Validate evaluates a coupon code against the supplied cart figures.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	if h.Coupons == nil {
		common.WriteAppError(w, common.Internal("coupon store not configured", nil))
		return
	}
	var req validateRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	c, err := h.Coupons.ByCode(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.CountCoupon("not_found")
			common.JSONError(w, http.StatusNotFound, "COUPON_NOT_FOUND", "coupon not found", nil)
			return
		}
		common.WriteAppError(w, common.Internal("unable to load coupon", err))
		return
	}
	res := Apply(Input{
		Subtotal:      req.Subtotal,
		Shipping:      req.ShippingCost,
		TotalQuantity: req.TotalQuantity,
		Now:           h.now(),
	}, &c)
	obs.CountCoupon(resultLabel(res))
	obs.Annotate(r.Context(), "coupon_result", resultLabel(res))
	common.JSON(w, http.StatusOK, map[string]any{"data": Details(c, res)})
}

// Details renders a coupon evaluation for API responses.
func Details(c Coupon, res Result) map[string]any {
	return map[string]any{
		"code":              c.Code,
		"type":              c.Type,
		"applies_to":        scopeOrDefault(c.AppliesTo),
		"valid":             res.Applied,
		"reason":            res.Reason,
		"discount_amount":   common.Money(res.Discount),
		"shipping_discount": common.Money(res.ShippingDiscount),
		"total":             common.Money(res.Total),
	}
}

func resultLabel(res Result) string {
	if res.Applied {
		return "applied"
	}
	return string(res.Reason)
}

func scopeOrDefault(s Scope) Scope {
	if s == "" {
		return ScopeSubtotal
	}
	return s
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
