package shipping_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/shipping"
)

func TestFreeShippingOverridesTierPrice(t *testing.T) {
	rules := []catalog.FreeShippingRule{{ID: "r", ThresholdAmount: d("1000")}}
	fs := shipping.CheckFreeShipping(rules, d("1200"), nil)
	require.True(t, fs.Eligible)

	quotes := []shipping.Quote{
		shipping.PriceMethod(steppedMethod(), shipping.Load{Quantity: 17}),
	}
	quotes, fs = shipping.ApplyFreeShipping(quotes, fs)

	require.True(t, quotes[0].Price.IsZero())
	require.True(t, quotes[0].FreeShipping)
	require.True(t, quotes[0].OriginalPrice.Equal(d("60")))
	require.True(t, fs.Savings.Equal(d("60")))
}

func TestFreeShippingSavingsIsCheapestQuote(t *testing.T) {
	fs := shipping.FreeShipping{Eligible: true}
	quotes := []shipping.Quote{
		{MethodID: "a", Price: d("30"), OriginalPrice: d("30")},
		{MethodID: "b", Price: d("12.5"), OriginalPrice: d("12.5")},
	}
	out, fs := shipping.ApplyFreeShipping(quotes, fs)
	require.True(t, fs.Savings.Equal(d("12.5")))
	require.True(t, quotes[0].Price.Equal(d("30")), "input quotes are not mutated")
	require.True(t, out[1].Price.IsZero())
}

func TestFreeShippingBelowThreshold(t *testing.T) {
	rules := []catalog.FreeShippingRule{
		{ID: "high", ThresholdAmount: d("500000")},
		{ID: "low", ThresholdAmount: d("100000")},
	}
	fs := shipping.CheckFreeShipping(rules, d("80000"), nil)

	require.False(t, fs.Eligible)
	require.Nil(t, fs.Rule)
	require.Equal(t, "low", fs.Next.ID)
	require.True(t, fs.AmountNeeded.Equal(d("20000")))

	quotes := []shipping.Quote{{Price: d("9"), OriginalPrice: d("9")}}
	out, _ := shipping.ApplyFreeShipping(quotes, fs)
	require.True(t, out[0].Price.Equal(d("9")))
}

func TestFreeShippingPicksHighestMetRule(t *testing.T) {
	rules := []catalog.FreeShippingRule{
		{ID: "low", ThresholdAmount: d("100")},
		{ID: "high", ThresholdAmount: d("300")},
		{ID: "higher", ThresholdAmount: d("900")},
	}
	fs := shipping.CheckFreeShipping(rules, d("300"), []string{"x"})
	require.True(t, fs.Eligible)
	require.Equal(t, "high", fs.Rule.ID)
	require.Nil(t, fs.Next)
	require.True(t, fs.AmountNeeded.IsZero())
}

func TestFreeShippingCategoryScopedRule(t *testing.T) {
	rules := []catalog.FreeShippingRule{
		{ID: "frozen", ThresholdAmount: d("50"), ApplicableCategories: []string{"frozen"}},
	}
	require.False(t, shipping.CheckFreeShipping(rules, d("100"), []string{"dry"}).Eligible)
	require.Nil(t, shipping.CheckFreeShipping(rules, d("100"), []string{"dry"}).Rule)
	require.True(t, shipping.CheckFreeShipping(rules, d("100"), []string{"dry", "frozen"}).Eligible)
}

func TestFreeShippingWithoutRules(t *testing.T) {
	fs := shipping.CheckFreeShipping(nil, d("1000000"), nil)
	require.False(t, fs.Eligible)
	require.Nil(t, fs.Rule)
	require.Nil(t, fs.Next)
}
