// Package app assembles the infrastructure shared by the API server, the
// worker and the tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/health"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/resilience"
)

// Dependencies enumerates the connections and sources shared across commands.
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Catalog *catalog.CachedSource
	Coupons coupon.Finder
	// Breaker guards the remote catalog and is nil for the postgres source.
	Breaker *resilience.Breaker
}

// Options toggles optional instrumentation.
type Options struct {
	AppName      string
	RedisMetrics bool
}

// Connect opens Postgres (when configured) and Redis and builds the catalog source.
func Connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger}

	if cfg.DatabaseURL != "" {
		pool, err := NewPool(ctx, cfg.DatabaseURL, opts.AppName)
		if err != nil {
			return nil, err
		}
		deps.DB = pool
	}

	rdb, err := NewRedis(ctx, cfg.RedisURL, opts.RedisMetrics, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Redis = rdb

	var source catalog.Source
	switch cfg.CatalogSource {
	case config.CatalogRemote:
		deps.Breaker = resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).
			WithTarget("catalog").
			WithLogger(logger)
		source = catalog.NewRemoteSource(cfg.CatalogBaseURL, resilience.HTTPClient{
			Breaker:     deps.Breaker,
			BaseBackoff: cfg.RetryBase,
			MaxAttempts: cfg.RetryMaxAttempts,
			Jitter:      cfg.RetryJitterPercent / 100,
			Timeout:     cfg.OutboundTimeout,
			Target:      "catalog",
			Logger:      &deps.Logger,
		})
	default:
		if deps.DB == nil {
			deps.Close()
			return nil, errors.New("postgres catalog requires DATABASE_URL")
		}
		source = &catalog.Store{DB: deps.DB}
	}
	deps.Catalog = &catalog.CachedSource{
		Source: source,
		Cache:  catalog.NewCache(rdb, cfg.CatalogCacheTTL),
		Logger: logger,
	}

	if deps.DB != nil {
		deps.Coupons = &coupon.Store{DB: deps.DB}
	} else {
		logger.Warn().Msg("no database configured; coupon codes will not resolve")
		deps.Coupons = coupon.MapFinder{}
	}
	return deps, nil
}

// NewPool connects a pgx pool with query tracing.
func NewPool(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if appName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = appName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewRedis connects a go-redis client with OpenTelemetry instrumentation.
func NewRedis(ctx context.Context, redisURL string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// AsynqRedis derives asynq connection options from the shared Redis client.
func (d *Dependencies) AsynqRedis() asynq.RedisClientOpt {
	opts := d.Redis.Options()
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}

// PingDB implements health.Checker.
func (d *Dependencies) PingDB(ctx context.Context, timeout time.Duration) error {
	if d.DB == nil {
		return health.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.DB.Ping(ctx)
}

// PingRedis implements health.Checker.
func (d *Dependencies) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

// CatalogProbe reports an open breaker on the remote catalog. It returns nil
// for the postgres source, which PingDB already covers.
func (d *Dependencies) CatalogProbe() func(context.Context) error {
	if d.Breaker == nil {
		return nil
	}
	return func(context.Context) error {
		if d.Breaker.State() == resilience.Open {
			return errors.New("catalog circuit open")
		}
		return nil
	}
}

// Close releases the connections.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
