package coupon_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/coupon"
)

func newHandler() *coupon.Handler {
	return &coupon.Handler{
		Coupons: coupon.MapFinder{
			"HEMAT10": {Code: "HEMAT10", Type: coupon.Percentage, DiscountValue: dec("10"), MinPurchase: dec("100000"), Active: true},
		},
		Now: func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestValidateAppliesCoupon(t *testing.T) {
	body := `{"code":"hemat10","subtotal":"250000","shipping_cost":"20000","total_quantity":3}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/coupons/validate", strings.NewReader(body))
	rr := httptest.NewRecorder()

	newHandler().Validate(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Valid    bool   `json:"valid"`
			Discount string `json:"discount_amount"`
			Total    string `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Data.Valid)
	require.Equal(t, "25000.00", resp.Data.Discount)
	require.Equal(t, "245000.00", resp.Data.Total)
}

func TestValidateReportsReason(t *testing.T) {
	body := `{"code":"HEMAT10","subtotal":50000,"shipping_cost":0,"total_quantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/coupons/validate", strings.NewReader(body))
	rr := httptest.NewRecorder()

	newHandler().Validate(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"reason":"min_purchase_unmet"`)
	require.Contains(t, rr.Body.String(), `"valid":false`)
}

func TestValidateUnknownCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/coupons/validate", strings.NewReader(`{"code":"NOPE"}`))
	rr := httptest.NewRecorder()

	newHandler().Validate(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "COUPON_NOT_FOUND")
}

func TestValidateRequiresCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/coupons/validate", strings.NewReader(`{"subtotal":10}`))
	rr := httptest.NewRecorder()

	newHandler().Validate(rr, req)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), `"code":"required"`)
}
