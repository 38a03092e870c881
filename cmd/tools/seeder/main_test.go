package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDemoCatalogDecodes(t *testing.T) {
	doc, err := decode(demoCatalog)
	require.NoError(t, err)
	require.NotEmpty(t, doc.Products)
	require.NotEmpty(t, doc.ShippingMethods)
	require.NotEmpty(t, doc.FreeShippingRules)
	require.NotEmpty(t, doc.Coupons)

	for _, p := range doc.Products {
		require.True(t, p.Price.Valid, p.ID)
		require.GreaterOrEqual(t, p.MinimumQuantity(), 1)
	}
	for _, c := range doc.Coupons {
		require.True(t, c.DiscountValue.IsPositive(), c.Code)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := decode([]byte(`{"products":[],"tenants":[]}`))
	require.Error(t, err)
}

func TestDecodeRequiresProductID(t *testing.T) {
	_, err := decode([]byte(`{"products":[{"name":"x","price":"1"}]}`))
	require.Error(t, err)
}
