package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Querier is the subset of pgxpool.Pool used by Store.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads catalog snapshots from Postgres.
type Store struct {
	DB Querier
}

const (
	sqlProductsByID = `SELECT id::text, name, slug, price::text, discount_price::text, wholesale_price::text,
	minimum_purchase::text, weight::text, shipping_categories
FROM products
WHERE id = ANY($1::uuid[])`

	sqlActiveMethods = `SELECT id, name, description, base_price::text, max_quantity, max_weight::text,
	allowed_categories, preferred_pricing_type, delivery_estimated_time
FROM shipping_methods
WHERE active
ORDER BY sort_order, id`

	sqlTiersForMethods = `SELECT id::text, method_id, pricing_type, min_value::text, max_value::text, base_price::text,
	increment_per_unit::text, increment_unit_size::text, priority
FROM shipping_tiers
WHERE method_id = ANY($1::text[])
ORDER BY method_id, priority DESC, min_value DESC`

	sqlActiveFreeShippingRules = `SELECT id, threshold_amount::text, applicable_categories
FROM free_shipping_rules
WHERE active
ORDER BY threshold_amount DESC, id`
)

type productRow struct {
	ID              string
	Name            string
	Slug            *string
	Price           *string
	DiscountPrice   *string
	WholesalePrice  *string
	MinimumPurchase *string
	Weight          *string
	Categories      []string
}

func (r productRow) toProduct() Product {
	p := Product{
		ID:                 r.ID,
		Name:               r.Name,
		Price:              AmountPtr(r.Price),
		DiscountPrice:      AmountPtr(r.DiscountPrice),
		WholesalePrice:     AmountPtr(r.WholesalePrice),
		MinimumPurchase:    AmountPtr(r.MinimumPurchase),
		Weight:             AmountPtr(r.Weight),
		ShippingCategories: r.Categories,
	}
	if r.Slug != nil {
		p.Slug = *r.Slug
	}
	if p.ShippingCategories == nil {
		p.ShippingCategories = []string{}
	}
	return p
}

type methodRow struct {
	ID                string
	Name              string
	Description       *string
	BasePrice         string
	MaxQuantity       *int32
	MaxWeight         *string
	AllowedCategories []string
	PreferredPricing  string
	DeliveryEstimate  *string
}

func (r methodRow) toMethod() ShippingMethod {
	m := ShippingMethod{
		ID:                r.ID,
		Name:              r.Name,
		BasePrice:         AmountOf(r.BasePrice).Or(decimal.Zero),
		MaxWeight:         AmountPtr(r.MaxWeight),
		AllowedCategories: r.AllowedCategories,
		PreferredPricing:  PricingType(r.PreferredPricing).Normalize(),
		Active:            true,
	}
	if r.Description != nil {
		m.Description = *r.Description
	}
	if r.DeliveryEstimate != nil {
		m.DeliveryEstimate = *r.DeliveryEstimate
	}
	if r.MaxQuantity != nil {
		v := int(*r.MaxQuantity)
		m.MaxQuantity = &v
	}
	if m.AllowedCategories == nil {
		m.AllowedCategories = []string{}
	}
	return m
}

type tierRow struct {
	ID                string
	MethodID          string
	PricingType       string
	MinValue          string
	MaxValue          *string
	BasePrice         string
	IncrementPerUnit  *string
	IncrementUnitSize *string
	Priority          int32
}

func (r tierRow) toTier() ShippingTier {
	return ShippingTier{
		ID:                r.ID,
		PricingType:       PricingType(r.PricingType).Normalize(),
		MinValue:          AmountOf(r.MinValue).Or(decimal.Zero),
		MaxValue:          AmountPtr(r.MaxValue),
		BasePrice:         AmountOf(r.BasePrice).Or(decimal.Zero),
		IncrementPerUnit:  AmountPtr(r.IncrementPerUnit),
		IncrementUnitSize: AmountPtr(r.IncrementUnitSize),
		Priority:          int(r.Priority),
	}
}

// Products implements Source.
func (s *Store) Products(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, sqlProductsByID, ids)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r productRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Slug, &r.Price, &r.DiscountPrice, &r.WholesalePrice,
			&r.MinimumPurchase, &r.Weight, &r.Categories); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[r.ID] = r.toProduct()
	}
	return out, rows.Err()
}

// ShippingMethods implements Source.
func (s *Store) ShippingMethods(ctx context.Context) ([]ShippingMethod, error) {
	rows, err := s.DB.Query(ctx, sqlActiveMethods)
	if err != nil {
		return nil, fmt.Errorf("query shipping methods: %w", err)
	}
	var (
		methods []ShippingMethod
		ids     []string
	)
	for rows.Next() {
		var r methodRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.BasePrice, &r.MaxQuantity, &r.MaxWeight,
			&r.AllowedCategories, &r.PreferredPricing, &r.DeliveryEstimate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan shipping method: %w", err)
		}
		methods = append(methods, r.toMethod())
		ids = append(ids, r.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		return []ShippingMethod{}, nil
	}

	tierRows, err := s.DB.Query(ctx, sqlTiersForMethods, ids)
	if err != nil {
		return nil, fmt.Errorf("query shipping tiers: %w", err)
	}
	defer tierRows.Close()
	tiers := make(map[string][]ShippingTier, len(methods))
	for tierRows.Next() {
		var r tierRow
		if err := tierRows.Scan(&r.ID, &r.MethodID, &r.PricingType, &r.MinValue, &r.MaxValue, &r.BasePrice,
			&r.IncrementPerUnit, &r.IncrementUnitSize, &r.Priority); err != nil {
			return nil, fmt.Errorf("scan shipping tier: %w", err)
		}
		tiers[r.MethodID] = append(tiers[r.MethodID], r.toTier())
	}
	if err := tierRows.Err(); err != nil {
		return nil, err
	}
	for i := range methods {
		methods[i].Tiers = tiers[methods[i].ID]
	}
	return methods, nil
}

// FreeShippingRules implements Source.
func (s *Store) FreeShippingRules(ctx context.Context) ([]FreeShippingRule, error) {
	rows, err := s.DB.Query(ctx, sqlActiveFreeShippingRules)
	if err != nil {
		return nil, fmt.Errorf("query free shipping rules: %w", err)
	}
	defer rows.Close()
	rules := []FreeShippingRule{}
	for rows.Next() {
		var (
			id         string
			threshold  string
			categories []string
		)
		if err := rows.Scan(&id, &threshold, &categories); err != nil {
			return nil, fmt.Errorf("scan free shipping rule: %w", err)
		}
		rules = append(rules, FreeShippingRule{
			ID:                   id,
			ThresholdAmount:      AmountOf(threshold).Or(decimal.Zero),
			ApplicableCategories: categories,
			Active:               true,
		})
	}
	return rules, rows.Err()
}
