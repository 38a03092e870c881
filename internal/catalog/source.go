package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrUnavailable marks a catalog read that could not be served. Callers treat
// it as a degraded result rather than a hard failure.
var ErrUnavailable = errors.New("catalog: source unavailable")

// Source supplies read-only catalog snapshots to the checkout engine.
type Source interface {
	// Products returns the requested products keyed by id. Unknown ids are omitted.
	Products(ctx context.Context, ids []string) (map[string]Product, error)
	// ShippingMethods returns active methods with their tiers.
	ShippingMethods(ctx context.Context) ([]ShippingMethod, error)
	// FreeShippingRules returns active rules, highest threshold first.
	FreeShippingRules(ctx context.Context) ([]FreeShippingRule, error)
}

// StaticSource serves a fixed catalog held in memory.
type StaticSource struct {
	Catalog Fixture
}

// Fixture is the JSON document layout understood by LoadFixture.
type Fixture struct {
	Products          []Product          `json:"products"`
	ShippingMethods   []ShippingMethod   `json:"shipping_methods"`
	FreeShippingRules []FreeShippingRule `json:"free_shipping_rules"`
}

// LoadFixture decodes a catalog fixture document.
func LoadFixture(r io.Reader) (*StaticSource, error) {
	var fx Fixture
	if err := json.NewDecoder(r).Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode catalog fixture: %w", err)
	}
	return &StaticSource{Catalog: fx}, nil
}

// Products implements Source.
func (s *StaticSource) Products(_ context.Context, ids []string) (map[string]Product, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make(map[string]Product, len(ids))
	for _, p := range s.Catalog.Products {
		if _, ok := wanted[p.ID]; ok {
			out[p.ID] = p
		}
	}
	return out, nil
}

// ShippingMethods implements Source.
func (s *StaticSource) ShippingMethods(context.Context) ([]ShippingMethod, error) {
	out := make([]ShippingMethod, 0, len(s.Catalog.ShippingMethods))
	for _, m := range s.Catalog.ShippingMethods {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

// FreeShippingRules implements Source.
func (s *StaticSource) FreeShippingRules(context.Context) ([]FreeShippingRule, error) {
	out := make([]FreeShippingRule, 0, len(s.Catalog.FreeShippingRules))
	for _, r := range s.Catalog.FreeShippingRules {
		if r.Active {
			out = append(out, r)
		}
	}
	SortRules(out)
	return out, nil
}

// SortRules orders rules by descending threshold, then id.
func SortRules(rules []FreeShippingRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if c := rules[i].ThresholdAmount.Cmp(rules[j].ThresholdAmount); c != 0 {
			return c > 0
		}
		return rules[i].ID < rules[j].ID
	})
}
