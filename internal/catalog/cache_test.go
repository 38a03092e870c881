package catalog_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/catalog"
)

type countingSource struct {
	catalog.Source
	methodCalls  atomic.Int32
	productCalls atomic.Int32
}

func (c *countingSource) ShippingMethods(ctx context.Context) ([]catalog.ShippingMethod, error) {
	c.methodCalls.Add(1)
	return c.Source.ShippingMethods(ctx)
}

func (c *countingSource) Products(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	c.productCalls.Add(1)
	return c.Source.Products(ctx, ids)
}

func newCachedSource(t *testing.T) (*catalog.CachedSource, *countingSource, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	static, err := catalog.LoadFixture(strings.NewReader(fixtureJSON))
	require.NoError(t, err)
	inner := &countingSource{Source: static}
	return &catalog.CachedSource{
		Source: inner,
		Cache:  catalog.NewCache(client, time.Minute),
		Logger: zerolog.Nop(),
	}, inner, mr
}

func TestCachedSourceShippingMethods(t *testing.T) {
	src, inner, _ := newCachedSource(t)
	var misses atomic.Int32
	src.OnMiss = func(context.Context) { misses.Add(1) }
	ctx := context.Background()

	first, err := src.ShippingMethods(ctx)
	require.NoError(t, err)
	second, err := src.ShippingMethods(ctx)
	require.NoError(t, err)

	require.Equal(t, first[0].ID, second[0].ID)
	require.True(t, first[0].BasePrice.Equal(second[0].BasePrice))
	require.EqualValues(t, 1, inner.methodCalls.Load())
	require.EqualValues(t, 1, misses.Load())
}

func TestCachedSourceProductsRoundTrip(t *testing.T) {
	src, inner, mr := newCachedSource(t)
	ctx := context.Background()

	_, err := src.Products(ctx, []string{"p2"})
	require.NoError(t, err)
	require.True(t, mr.Exists("catalog:product:p2"))

	cached, err := src.Products(ctx, []string{"p2"})
	require.NoError(t, err)
	require.EqualValues(t, 1, inner.productCalls.Load())
	require.True(t, cached["p2"].DiscountPrice.Valid)
	require.Equal(t, "15000", cached["p2"].DiscountPrice.Value.String())
	require.False(t, cached["p2"].WholesalePrice.Valid)
}

func TestCachedSourceWarmAndInvalidate(t *testing.T) {
	src, _, mr := newCachedSource(t)
	ctx := context.Background()

	methods, rules, err := src.Warm(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, methods)
	require.Equal(t, 2, rules)
	require.True(t, mr.Exists("catalog:shipping-methods"))
	require.True(t, mr.Exists("catalog:free-shipping-rules"))

	require.NoError(t, src.Invalidate(ctx))
	require.False(t, mr.Exists("catalog:shipping-methods"))
}
