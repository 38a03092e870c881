package shipping

import (
	"sort"
	"strings"

	"github.com/noah-isme/toko-checkout/internal/catalog"
)

// Item is a cart line as seen by the intersection analyzer.
type Item struct {
	ProductID  string
	Name       string
	Quantity   int
	Categories []string
}

// Group is a set of items sharing the same legal methods.
type Group struct {
	Items     []Item
	MethodIDs []string
}

// Plan is the outcome of intersecting every item's legal method set.
type Plan struct {
	RequiresSplit bool
	// MethodIDs lists the methods able to carry the whole cart, in catalog order.
	MethodIDs []string
	// Groups is populated only when RequiresSplit is set.
	Groups     []Group
	Violations []Violation
}

// Intersect groups items by their legal method set and decides whether the
// cart can ship as one parcel. Capacity limits are cart-wide, so a method
// violating them is excluded for every item.
func Intersect(items []Item, methods []catalog.ShippingMethod, load Load) Plan {
	var plan Plan
	carriers := make([]catalog.ShippingMethod, 0, len(methods))
	for _, m := range methods {
		if v := CapacityViolations(m, load); len(v) > 0 {
			plan.Violations = append(plan.Violations, v...)
			continue
		}
		carriers = append(carriers, m)
	}

	if len(items) == 0 {
		plan.MethodIDs = methodIDs(carriers)
		return plan
	}

	var (
		groups []Group
		index  = map[string]int{}
		legal  = map[string][]string{}
	)
	for _, it := range items {
		key := categoryKey(it.Categories)
		ids, ok := legal[key]
		if !ok {
			ids = legalFor(carriers, it.Categories)
			legal[key] = ids
		}
		setKey := strings.Join(ids, "\x00")
		if gi, ok := index[setKey]; ok {
			groups[gi].Items = append(groups[gi].Items, it)
			continue
		}
		index[setKey] = len(groups)
		groups = append(groups, Group{Items: []Item{it}, MethodIDs: ids})
	}

	if len(groups) == 1 {
		plan.MethodIDs = groups[0].MethodIDs
		return plan
	}
	shared := intersectIDs(groups)
	if len(shared) > 0 {
		plan.MethodIDs = shared
		return plan
	}
	plan.RequiresSplit = true
	plan.MethodIDs = []string{}
	plan.Groups = groups
	return plan
}

func legalFor(methods []catalog.ShippingMethod, categories []string) []string {
	ids := make([]string, 0, len(methods))
	for _, m := range methods {
		if CategoriesAllowed(m, categories) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func intersectIDs(groups []Group) []string {
	counts := make(map[string]int)
	for _, g := range groups {
		for _, id := range g.MethodIDs {
			counts[id]++
		}
	}
	out := []string{}
	for _, id := range groups[0].MethodIDs {
		if counts[id] == len(groups) {
			out = append(out, id)
		}
	}
	return out
}

func methodIDs(methods []catalog.ShippingMethod) []string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, m.ID)
	}
	return out
}

func categoryKey(categories []string) string {
	sorted := append([]string(nil), categories...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}
