package analysis_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/analysis"
	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/identity"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

func newHandler() *analysis.Handler {
	return &analysis.Handler{
		Analyzer: newAnalyzer(),
		Coupons: coupon.MapFinder{
			"HEMAT": {Code: "HEMAT", Type: coupon.Fixed, DiscountValue: d("25"), MinPurchase: d("100"), Active: true},
		},
		Currency: "IDR",
		Now:      func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func post(t *testing.T, h http.HandlerFunc, body string, who *pricing.Identity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if who != nil {
		req = req.WithContext(identity.WithIdentity(req.Context(), *who))
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestShippingAnalysisEndpoint(t *testing.T) {
	body := `{"cart_items":[
		{"product_id":"` + teaID + `","quantity":2,"price":100,"name":"Tea"},
		{"productId":"` + mugID + `","quantity":"x"}
	]}`
	rr := post(t, newHandler().ShippingAnalysis, body, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

	body = `{"cart_items":[
		{"product_id":"` + teaID + `","quantity":2,"price":100,"name":"Tea"},
		{"productId":"` + mugID + `","quantity":1},
		{"id":"not-a-uuid","quantity":1},
		{"uuid":"` + iceID + `","quantity":0}
	]}`
	rr = post(t, newHandler().ShippingAnalysis, body, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp analysis.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, analysis.Resolved, resp.State)
	require.Nil(t, resp.Error)
	require.False(t, resp.RequiresSplitShipping)
	require.Len(t, resp.AvailableMethods, 2)
	require.Equal(t, "regular", resp.AvailableMethods[0].ID)
	require.Equal(t, "50.00", resp.AvailableMethods[0].CalculatedPrice.String())
	require.True(t, resp.AvailableMethods[0].TierApplied)
	require.Equal(t, 3, resp.CartAnalysis.TotalQuantity)
	require.Equal(t, "190.00", resp.CartAnalysis.Subtotal.String())
	require.Len(t, resp.InvalidItems, 2)
	require.Equal(t, analysis.ReasonInvalidProductID, resp.InvalidItems[0].Reason)
	require.Equal(t, analysis.ReasonInvalidQuantity, resp.InvalidItems[1].Reason)
	require.Nil(t, resp.FreeShippingRule)
	require.NotNil(t, resp.NextFreeShippingRule)
	require.Equal(t, "1000.00", resp.NextFreeShippingRule.ThresholdAmount.String())
	require.Equal(t, "810.00", resp.AmountNeededForFree.String())
	require.Empty(t, resp.ShippingGroups)
}

func TestShippingAnalysisAllItemsInvalid(t *testing.T) {
	rr := post(t, newHandler().ShippingAnalysis, `{"cart_items":[{"product_id":"abc","quantity":1}]}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_CART_ITEMS")
}

func TestShippingAnalysisRequiresItems(t *testing.T) {
	rr := post(t, newHandler().ShippingAnalysis, `{"cart_items":[]}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "cart_items")
}

func TestShippingAnalysisMissingProductIsDegraded(t *testing.T) {
	body := `{"cart_items":[{"product_id":"` + missingID + `","quantity":1},{"product_id":"` + mugID + `","quantity":1}]}`
	rr := post(t, newHandler().ShippingAnalysis, body, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp analysis.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, analysis.Degraded, resp.State)
	require.Equal(t, []string{missingID}, resp.MissingProducts)
	require.NotNil(t, resp.Error)
}

func TestCalculationEndpoint(t *testing.T) {
	body := `{"cart_items":[{"product_id":"` + teaID + `","quantity":2}],"coupon_code":"hemat","selected_shipping_method_id":"courier"}`
	rr := post(t, newHandler().Calculation, body, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Data struct {
			Summary struct {
				Subtotal json.Number `json:"cart_subtotal"`
				Shipping json.Number `json:"shipping_cost"`
				Discount json.Number `json:"discount_amount"`
				Total    json.Number `json:"final_total"`
				Currency string      `json:"currency"`
			} `json:"calculation_summary"`
			Shipping struct {
				Selected struct {
					ID string `json:"id"`
				} `json:"selected_method"`
			} `json:"shipping_details"`
			Coupon struct {
				Valid bool `json:"valid"`
			} `json:"coupon_details"`
			Lines []struct {
				Classification  string      `json:"price_classification"`
				ComparisonPrice json.Number `json:"comparison_price"`
			} `json:"lines"`
			Recommendations analysis.Recommendations `json:"recommendations"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	require.Equal(t, "160.00", resp.Data.Summary.Subtotal.String())
	require.Equal(t, "70.00", resp.Data.Summary.Shipping.String())
	require.Equal(t, "25.00", resp.Data.Summary.Discount.String())
	require.Equal(t, "205.00", resp.Data.Summary.Total.String())
	require.Equal(t, "IDR", resp.Data.Summary.Currency)
	require.Equal(t, "courier", resp.Data.Shipping.Selected.ID)
	require.True(t, resp.Data.Coupon.Valid)
	require.Equal(t, "discounted", resp.Data.Lines[0].Classification)
	require.Equal(t, "100.00", resp.Data.Lines[0].ComparisonPrice.String())
	require.Len(t, resp.Data.Recommendations.SavingsOpportunities, 1)
	require.Equal(t, "free_shipping", resp.Data.Recommendations.SavingsOpportunities[0].Type)
}

func TestCalculateDefaultsToFirstMethodAndWarnsOnSplit(t *testing.T) {
	res := newAnalyzer().Analyze(t.Context(), analysis.Cart{Items: []analysis.Item{
		{ProductID: teaID, Quantity: 3},
		{ProductID: iceID, Quantity: 3},
	}}, pricing.Identity{})

	calc := analysis.Calculate(res, "", "", nil, time.Now())
	require.Nil(t, calc.Selected)
	require.True(t, calc.ShippingCost.IsZero())
	require.Len(t, calc.Recommendations.Warnings, 1)
	require.Equal(t, "split_shipping", calc.Recommendations.Warnings[0].Type)
	require.True(t, calc.Coupon.Total.Equal(res.Totals.Subtotal))
}

func TestMinimumCheckEndpoint(t *testing.T) {
	wholesaler := pricing.Identity{Kind: pricing.WholesalerApproved, UserID: "w1"}
	rr := post(t, newHandler().MinimumCheck, `{"product_id":"`+iceID+`","quantity":9}`, &wholesaler)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"is_valid":false`)
	require.Contains(t, rr.Body.String(), `"shortage":1`)
	require.Contains(t, rr.Body.String(), `"price_classification":"wholesale_applied"`)

	rr = post(t, newHandler().MinimumCheck, `{"product_id":"`+iceID+`","quantity":1}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"is_valid":true`)

	rr = post(t, newHandler().MinimumCheck, `{"product_id":"`+missingID+`","quantity":1}`, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMinimumCheckRejectsUnpricedProduct(t *testing.T) {
	cat := fixture()
	cat.Products = append(cat.Products, catalog.Product{ID: missingID, Name: "Broken", Price: catalog.AmountOf("abc")})
	h := newHandler()
	h.Analyzer = &analysis.Analyzer{Source: &catalog.StaticSource{Catalog: cat}, Timeout: time.Second}

	rr := post(t, h.MinimumCheck, `{"product_id":"`+missingID+`","quantity":1}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "PRODUCT_UNPRICED")
}

func TestShippingAnalysisReportsUnpricedProducts(t *testing.T) {
	cat := fixture()
	cat.Products = append(cat.Products, catalog.Product{ID: missingID, Name: "Broken"})
	h := newHandler()
	h.Analyzer = &analysis.Analyzer{Source: &catalog.StaticSource{Catalog: cat}, Timeout: time.Second}

	body := `{"cart_items":[{"product_id":"` + missingID + `","quantity":2},{"product_id":"` + mugID + `","quantity":1}]}`
	rr := post(t, h.ShippingAnalysis, body, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp analysis.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, analysis.Degraded, resp.State)
	require.Equal(t, []string{missingID}, resp.UnpricedProducts)
	require.Empty(t, resp.MissingProducts)
	require.Equal(t, "30.00", resp.CartAnalysis.Subtotal.String())
	require.NotNil(t, resp.Error)
}
