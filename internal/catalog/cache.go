package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyProductPrefix   = "catalog:product:"
	keyShippingMethods = "catalog:shipping-methods"
	keyFreeShipping    = "catalog:free-shipping-rules"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A zero ttl keeps entries until evicted.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete removes the provided keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// CachedSource serves shipping configuration and product snapshots from Redis,
// falling through to the wrapped Source on a miss.
type CachedSource struct {
	Source Source
	Cache  *Cache
	// OnMiss is invoked after shipping configuration had to be loaded from Source.
	OnMiss func(ctx context.Context)
	Logger zerolog.Logger
}

// Products implements Source.
func (s *CachedSource) Products(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	var missing []string
	for _, id := range ids {
		var p Product
		ok, err := s.Cache.GetJSON(ctx, keyProductPrefix+id, &p)
		if err != nil {
			s.Logger.Warn().Err(err).Str("product_id", id).Msg("catalog_cache_read")
		}
		if ok {
			out[id] = p
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	fetched, err := s.Source.Products(ctx, missing)
	if err != nil {
		return out, err
	}
	for id, p := range fetched {
		out[id] = p
		if err := s.Cache.SetJSON(ctx, keyProductPrefix+id, p); err != nil {
			s.Logger.Warn().Err(err).Str("product_id", id).Msg("catalog_cache_write")
		}
	}
	return out, nil
}

// ShippingMethods implements Source.
func (s *CachedSource) ShippingMethods(ctx context.Context) ([]ShippingMethod, error) {
	var methods []ShippingMethod
	if ok, err := s.Cache.GetJSON(ctx, keyShippingMethods, &methods); err == nil && ok {
		return methods, nil
	} else if err != nil {
		s.Logger.Warn().Err(err).Msg("catalog_cache_read")
	}
	methods, err := s.Source.ShippingMethods(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.SetJSON(ctx, keyShippingMethods, methods); err != nil {
		s.Logger.Warn().Err(err).Msg("catalog_cache_write")
	}
	s.miss(ctx)
	return methods, nil
}

// FreeShippingRules implements Source.
func (s *CachedSource) FreeShippingRules(ctx context.Context) ([]FreeShippingRule, error) {
	var rules []FreeShippingRule
	if ok, err := s.Cache.GetJSON(ctx, keyFreeShipping, &rules); err == nil && ok {
		return rules, nil
	} else if err != nil {
		s.Logger.Warn().Err(err).Msg("catalog_cache_read")
	}
	rules, err := s.Source.FreeShippingRules(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.SetJSON(ctx, keyFreeShipping, rules); err != nil {
		s.Logger.Warn().Err(err).Msg("catalog_cache_write")
	}
	s.miss(ctx)
	return rules, nil
}

// Warm reloads shipping configuration from Source into the cache.
func (s *CachedSource) Warm(ctx context.Context) (methods, rules int, err error) {
	ms, err := s.Source.ShippingMethods(ctx)
	if err != nil {
		return 0, 0, err
	}
	rs, err := s.Source.FreeShippingRules(ctx)
	if err != nil {
		return 0, 0, err
	}
	if err := s.Cache.SetJSON(ctx, keyShippingMethods, ms); err != nil {
		return 0, 0, err
	}
	if err := s.Cache.SetJSON(ctx, keyFreeShipping, rs); err != nil {
		return 0, 0, err
	}
	return len(ms), len(rs), nil
}

// Invalidate drops cached shipping configuration and the given products.
func (s *CachedSource) Invalidate(ctx context.Context, productIDs ...string) error {
	keys := []string{keyShippingMethods, keyFreeShipping}
	for _, id := range productIDs {
		keys = append(keys, keyProductPrefix+id)
	}
	return s.Cache.Delete(ctx, keys...)
}

func (s *CachedSource) miss(ctx context.Context) {
	if s.OnMiss != nil {
		s.OnMiss(ctx)
	}
}
