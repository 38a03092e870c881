package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/app"
	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/db"
	"github.com/noah-isme/toko-checkout/internal/obs"
)

//go:embed demo.json
var demoCatalog []byte

// document is the seed file layout: a catalog fixture plus coupons.
type document struct {
	catalog.Fixture
	Coupons []coupon.Coupon `json:"coupons"`
}

func main() {
	file := flag.String("file", "", "seed document (defaults to the built-in demo catalog)")
	skipMigrate := flag.Bool("skip-migrate", false, "do not apply schema migrations first")
	flag.Parse()

	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	raw := demoCatalog
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			logger.Fatal().Err(err).Msg("read seed file")
		}
		raw = data
	}
	doc, err := decode(raw)
	if err != nil {
		logger.Fatal().Err(err).Msg("decode seed document")
	}

	if !*skipMigrate {
		if err := db.Up(dbURL, logger); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := app.NewPool(ctx, dbURL, "toko-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error { return seed(ctx, tx, doc) }); err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
	logger.Info().
		Int("products", len(doc.Products)).
		Int("shipping_methods", len(doc.ShippingMethods)).
		Int("free_shipping_rules", len(doc.FreeShippingRules)).
		Int("coupons", len(doc.Coupons)).
		Msg("seeding completed")

	invalidateCache(ctx, doc, logger)
}

func decode(raw []byte) (document, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return document{}, err
	}
	for _, p := range doc.Products {
		if p.ID == "" || p.Name == "" {
			return document{}, fmt.Errorf("product %q: id and name are required", p.ID)
		}
	}
	for _, m := range doc.ShippingMethods {
		if m.ID == "" {
			return document{}, fmt.Errorf("shipping method %q: id is required", m.Name)
		}
	}
	return doc, nil
}

func seed(ctx context.Context, tx pgx.Tx, doc document) error {
	for _, p := range doc.Products {
		if _, err := tx.Exec(ctx, `INSERT INTO products (id, name, slug, price, discount_price, wholesale_price, minimum_purchase, weight, shipping_categories)
VALUES ($1, $2, NULLIF($3, ''), $4::text::numeric, $5::text::numeric, $6::text::numeric, $7::text::numeric, $8::text::numeric, $9)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug, price = EXCLUDED.price,
	discount_price = EXCLUDED.discount_price, wholesale_price = EXCLUDED.wholesale_price,
	minimum_purchase = EXCLUDED.minimum_purchase, weight = EXCLUDED.weight,
	shipping_categories = EXCLUDED.shipping_categories, updated_at = now()`,
			p.ID, p.Name, p.Slug, numeric(p.Price), numeric(p.DiscountPrice), numeric(p.WholesalePrice),
			numeric(p.MinimumPurchase), numeric(p.Weight), nonNil(p.ShippingCategories)); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}

	for i, m := range doc.ShippingMethods {
		if _, err := tx.Exec(ctx, `INSERT INTO shipping_methods (id, name, description, base_price, max_quantity, max_weight,
	allowed_categories, preferred_pricing_type, delivery_estimated_time, sort_order, active)
VALUES ($1, $2, NULLIF($3, ''), $4::text::numeric, $5, $6::text::numeric, $7, $8, NULLIF($9, ''), $10, $11)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
	base_price = EXCLUDED.base_price, max_quantity = EXCLUDED.max_quantity, max_weight = EXCLUDED.max_weight,
	allowed_categories = EXCLUDED.allowed_categories, preferred_pricing_type = EXCLUDED.preferred_pricing_type,
	delivery_estimated_time = EXCLUDED.delivery_estimated_time, sort_order = EXCLUDED.sort_order,
	active = EXCLUDED.active`,
			m.ID, m.Name, m.Description, m.BasePrice.String(), m.MaxQuantity, numeric(m.MaxWeight),
			nonNil(m.AllowedCategories), string(m.PreferredPricing.Normalize()), m.DeliveryEstimate, i, m.Active); err != nil {
			return fmt.Errorf("upsert shipping method %s: %w", m.ID, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM shipping_tiers WHERE method_id = $1`, m.ID); err != nil {
			return fmt.Errorf("reset tiers for %s: %w", m.ID, err)
		}
		for _, t := range m.Tiers {
			if _, err := tx.Exec(ctx, `INSERT INTO shipping_tiers (method_id, pricing_type, min_value, max_value, base_price,
	increment_per_unit, increment_unit_size, priority)
VALUES ($1, $2, $3::text::numeric, $4::text::numeric, $5::text::numeric, $6::text::numeric, $7::text::numeric, $8)`,
				m.ID, string(t.PricingType.Normalize()), t.MinValue.String(), numeric(t.MaxValue), t.BasePrice.String(),
				numeric(t.IncrementPerUnit), numeric(t.IncrementUnitSize), t.Priority); err != nil {
				return fmt.Errorf("insert tier for %s: %w", m.ID, err)
			}
		}
	}

	for _, r := range doc.FreeShippingRules {
		if _, err := tx.Exec(ctx, `INSERT INTO free_shipping_rules (id, threshold_amount, applicable_categories, active)
VALUES ($1, $2::text::numeric, $3, $4)
ON CONFLICT (id) DO UPDATE SET threshold_amount = EXCLUDED.threshold_amount,
	applicable_categories = EXCLUDED.applicable_categories, active = EXCLUDED.active`,
			r.ID, r.ThresholdAmount.String(), nonNil(r.ApplicableCategories), r.Active); err != nil {
			return fmt.Errorf("upsert free shipping rule %s: %w", r.ID, err)
		}
	}

	for _, c := range doc.Coupons {
		if _, err := tx.Exec(ctx, `INSERT INTO coupons (code, type, discount_value, min_purchase, applies_to, min_quantity, valid_from, expires_at, active)
VALUES (upper($1), $2, $3::text::numeric, $4::text::numeric, $5, $6, $7, $8, $9)
ON CONFLICT (code) DO UPDATE SET type = EXCLUDED.type, discount_value = EXCLUDED.discount_value,
	min_purchase = EXCLUDED.min_purchase, applies_to = EXCLUDED.applies_to, min_quantity = EXCLUDED.min_quantity,
	valid_from = EXCLUDED.valid_from, expires_at = EXCLUDED.expires_at, active = EXCLUDED.active`,
			c.Code, strings.ToLower(string(c.Type)), c.DiscountValue.String(), c.MinPurchase.String(),
			string(scope(c.AppliesTo)), c.MinQuantity, c.ValidFrom, c.ExpiresAt, c.Active); err != nil {
			return fmt.Errorf("upsert coupon %s: %w", c.Code, err)
		}
	}
	return nil
}

// invalidateCache drops cached shipping configuration so the API picks up
// the seeded rows. It is skipped when REDIS_URL is unset.
func invalidateCache(ctx context.Context, doc document, logger zerolog.Logger) {
	redisURL := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if redisURL == "" {
		return
	}
	rdb, err := app.NewRedis(ctx, redisURL, false, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("skip cache invalidation")
		return
	}
	defer func() { _ = rdb.Close() }()

	ids := make([]string, 0, len(doc.Products))
	for _, p := range doc.Products {
		ids = append(ids, p.ID)
	}
	cached := &catalog.CachedSource{Cache: catalog.NewCache(rdb, 0), Logger: logger}
	if err := cached.Invalidate(ctx, ids...); err != nil {
		logger.Warn().Err(err).Msg("invalidate catalog cache")
		return
	}
	logger.Info().Int("products", len(ids)).Msg("catalog cache invalidated")
}

func numeric(a catalog.Amount) *string {
	if !a.Valid {
		return nil
	}
	s := a.Value.String()
	return &s
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func scope(s coupon.Scope) coupon.Scope {
	if s == "" {
		return coupon.ScopeSubtotal
	}
	return s
}
