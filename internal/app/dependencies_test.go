package app

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/health"
	"github.com/noah-isme/toko-checkout/internal/resilience"
)

func TestConnectRemoteCatalogWithoutDatabase(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		RedisURL:            "redis://" + mr.Addr() + "/0",
		CatalogSource:       config.CatalogRemote,
		CatalogBaseURL:      "http://catalog.invalid",
		CatalogCacheTTL:     time.Minute,
		CircuitMinRequests:  1,
		CircuitFailureRatio: 0.5,
		CircuitOpenFor:      time.Minute,
		RetryMaxAttempts:    1,
	}

	deps, err := Connect(context.Background(), cfg, zerolog.Nop(), Options{AppName: "test"})
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	require.Nil(t, deps.DB)
	require.NotNil(t, deps.Catalog)
	require.IsType(t, coupon.MapFinder{}, deps.Coupons)

	ctx := context.Background()
	require.ErrorIs(t, deps.PingDB(ctx, time.Second), health.ErrNotConfigured)
	require.NoError(t, deps.PingRedis(ctx, time.Second))

	probe := deps.CatalogProbe()
	require.NotNil(t, probe)
	require.NoError(t, probe(ctx))
	deps.Breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, deps.Breaker.State())
	require.Error(t, probe(ctx))

	opt := deps.AsynqRedis()
	require.Equal(t, mr.Addr(), opt.Addr)
}

func TestConnectPostgresCatalogRequiresDatabase(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{RedisURL: "redis://" + mr.Addr(), CatalogSource: config.CatalogPostgres}
	_, err := Connect(context.Background(), cfg, zerolog.Nop(), Options{})
	require.Error(t, err)
}
