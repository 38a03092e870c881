package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/pricing"
	"github.com/noah-isme/toko-checkout/internal/shipping"
)

// State is the terminal state of one analysis run.
type State string

const (
	Resolved State = "resolved"
	Degraded State = "degraded"
)

// ErrTimeout is reported when catalog snapshots did not arrive in time.
var ErrTimeout = errors.New("analysis timed out waiting for catalog")

// DefaultTimeout bounds catalog reads when Analyzer.Timeout is unset.
const DefaultTimeout = 3 * time.Second

// Item is one cart line handed to the analyzer.
type Item struct {
	ProductID string
	Name      string
	Quantity  int
	// Weight is the per-unit weight carried by the cart, used when the
	// catalog has none for the product.
	Weight catalog.Amount
}

// Cart is an immutable cart snapshot. Version identifies the snapshot the
// result was derived from.
type Cart struct {
	ID      string
	Version int64
	Items   []Item
}

// Line is a priced cart line.
type Line struct {
	Item       Item
	Product    catalog.Product
	Resolution pricing.Resolution
	Minimum    pricing.MinimumCheck
	UnitWeight catalog.Amount
}

// Subtotal returns the line total at full precision.
func (l Line) Subtotal() decimal.Decimal {
	return pricing.Line{Quantity: l.Item.Quantity, Resolution: l.Resolution}.Subtotal()
}

// GroupResult is one shipment of a split cart.
type GroupResult struct {
	Items   []shipping.Item
	Methods []shipping.Quote
}

// Result is the full pricing and shipping decision for a cart.
type Result struct {
	State             State
	Err               error
	CartID            string
	CartVersion       int64
	Lines             []Line
	MissingProducts   []string
	UnpricedProducts  []string
	Totals            pricing.Summary
	Categories        []string
	RequiresSplit     bool
	Methods           []shipping.Quote
	Groups            []GroupResult
	Violations        []shipping.Violation
	FreeShipping      shipping.FreeShipping
	PricingMethodUsed catalog.PricingType
}

// Analyzer turns a cart snapshot and a buyer into a Result.
type Analyzer struct {
	Source  catalog.Source
	Timeout time.Duration
	Logger  zerolog.Logger
}

type snapshot struct {
	products map[string]catalog.Product
	methods  []catalog.ShippingMethod
	rules    []catalog.FreeShippingRule
}

// Analyze never fails: unreachable catalog data and timeouts produce a
// Degraded result with an empty method list and the cause in Err.
func (a *Analyzer) Analyze(ctx context.Context, cart Cart, who pricing.Identity) Result {
	start := time.Now()
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx, span := obs.StartSpan(ctx, "analysis.analyze",
		attribute.String("cart.id", cart.ID),
		attribute.Int("cart.items", len(cart.Items)),
		attribute.String("buyer.kind", who.Kind.String()),
	)
	defer span.End()

	var res Result
	snap, err := a.fetch(ctx, productIDs(cart.Items))
	if err != nil {
		res = degraded(err)
	} else {
		res = Compute(cart, who, snap.products, snap.methods, snap.rules)
	}
	res.CartID, res.CartVersion = cart.ID, cart.Version

	span.SetAttributes(
		attribute.String("analysis.state", string(res.State)),
		attribute.Bool("analysis.requires_split", res.RequiresSplit),
		attribute.Int("analysis.methods", len(res.Methods)),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	obs.ObserveAnalysis(string(res.State), time.Since(start), res.RequiresSplit)
	if res.State == Degraded {
		evt := a.Logger.Warn().
			Str("cart_id", cart.ID).
			Int64("cart_version", cart.Version).
			Strs("missing_products", res.MissingProducts).
			Strs("unpriced_products", res.UnpricedProducts)
		if res.Err != nil {
			evt = evt.Err(res.Err)
		}
		evt.Msg("analysis_degraded")
	}
	return res
}

// fetch reads all catalog snapshots, giving up when ctx expires even if the
// source ignores cancellation.
func (a *Analyzer) fetch(ctx context.Context, ids []string) (snapshot, error) {
	if a.Source == nil {
		return snapshot{}, catalog.ErrUnavailable
	}
	type outcome struct {
		snap snapshot
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		var (
			out outcome
			err error
		)
		if out.snap.products, err = a.Source.Products(ctx, ids); err != nil {
			out.err = fmt.Errorf("load products: %w", err)
		} else if out.snap.methods, err = a.Source.ShippingMethods(ctx); err != nil {
			out.err = fmt.Errorf("load shipping methods: %w", err)
		} else if out.snap.rules, err = a.Source.FreeShippingRules(ctx); err != nil {
			out.err = fmt.Errorf("load free shipping rules: %w", err)
		}
		done <- out
	}()
	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return snapshot{}, fmt.Errorf("%w: %v", ErrTimeout, out.err)
		}
		return out.snap, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return snapshot{}, ErrTimeout
		}
		return snapshot{}, ctx.Err()
	}
}

// Compute is the pure analysis over already-loaded catalog data.
func Compute(cart Cart, who pricing.Identity, products map[string]catalog.Product, methods []catalog.ShippingMethod, rules []catalog.FreeShippingRule) Result {
	res := Result{
		State:            Resolved,
		MissingProducts:  []string{},
		UnpricedProducts: []string{},
		Methods:          []shipping.Quote{},
		Violations:       []shipping.Violation{},
	}

	missing, unpriced := map[string]struct{}{}, map[string]struct{}{}
	totals := make([]pricing.Line, 0, len(cart.Items))
	items := make([]shipping.Item, 0, len(cart.Items))
	categories := map[string]struct{}{}
	for _, it := range cart.Items {
		if it.Quantity <= 0 {
			continue
		}
		p, ok := products[it.ProductID]
		if !ok {
			if _, seen := missing[it.ProductID]; !seen {
				missing[it.ProductID] = struct{}{}
				res.MissingProducts = append(res.MissingProducts, it.ProductID)
			}
			continue
		}
		resolution := pricing.Resolve(p, who, pricing.Options{})
		if resolution.Unpriced {
			if _, seen := unpriced[p.ID]; !seen {
				unpriced[p.ID] = struct{}{}
				res.UnpricedProducts = append(res.UnpricedProducts, p.ID)
			}
			continue
		}
		line := Line{
			Item:       it,
			Product:    p,
			Resolution: resolution,
			Minimum:    pricing.ValidateMinimum(p, it.Quantity, who),
			UnitWeight: unitWeight(p, it),
		}
		if line.Item.Name == "" {
			line.Item.Name = p.Name
		}
		res.Lines = append(res.Lines, line)
		totals = append(totals, pricing.Line{ProductID: p.ID, Quantity: it.Quantity, Resolution: line.Resolution, UnitWeight: line.UnitWeight})
		items = append(items, shipping.Item{ProductID: p.ID, Name: line.Item.Name, Quantity: it.Quantity, Categories: p.ShippingCategories})
		for _, c := range p.ShippingCategories {
			categories[c] = struct{}{}
		}
	}
	if len(res.MissingProducts) > 0 || len(res.UnpricedProducts) > 0 {
		res.State = Degraded
	}

	res.Totals = pricing.Totals(totals)
	for c := range categories {
		res.Categories = append(res.Categories, c)
	}
	sort.Strings(res.Categories)

	load := shipping.Load{Quantity: res.Totals.TotalQuantity, Weight: res.Totals.TotalWeight}
	plan := shipping.Intersect(items, methods, load)
	res.RequiresSplit = plan.RequiresSplit
	if plan.Violations != nil {
		res.Violations = plan.Violations
	}

	quotes := make(map[string]shipping.Quote, len(methods))
	for _, m := range methods {
		quotes[m.ID] = shipping.PriceMethod(m, load)
	}

	fs := shipping.CheckFreeShipping(rules, res.Totals.Subtotal, res.Categories)
	res.Methods, res.FreeShipping = shipping.ApplyFreeShipping(pick(quotes, plan.MethodIDs), fs)
	shipping.SortQuotes(res.Methods)
	for _, g := range plan.Groups {
		groupQuotes, _ := shipping.ApplyFreeShipping(pick(quotes, g.MethodIDs), fs)
		shipping.SortQuotes(groupQuotes)
		res.Groups = append(res.Groups, GroupResult{Items: g.Items, Methods: groupQuotes})
	}

	res.PricingMethodUsed = catalog.PricingByQuantity
	if len(res.Methods) > 0 {
		res.PricingMethodUsed = res.Methods[0].PricingType
	}
	return res
}

func degraded(err error) Result {
	return Result{
		State:             Degraded,
		Err:               err,
		MissingProducts:   []string{},
		UnpricedProducts:  []string{},
		Methods:           []shipping.Quote{},
		Violations:        []shipping.Violation{},
		Totals:            pricing.Summary{Subtotal: decimal.Zero, TotalWeight: decimal.Zero},
		PricingMethodUsed: catalog.PricingByQuantity,
		FreeShipping:      shipping.FreeShipping{AmountNeeded: decimal.Zero, Savings: decimal.Zero},
	}
}

func pick(quotes map[string]shipping.Quote, ids []string) []shipping.Quote {
	out := make([]shipping.Quote, 0, len(ids))
	for _, id := range ids {
		if q, ok := quotes[id]; ok {
			out = append(out, q)
		}
	}
	return out
}

// unitWeight prefers the catalog weight and falls back to the weight the cart carried.
func unitWeight(p catalog.Product, it Item) catalog.Amount {
	if p.Weight.Valid && !p.Weight.Value.IsNegative() {
		return p.Weight
	}
	if it.Weight.Valid && !it.Weight.Value.IsNegative() {
		return it.Weight
	}
	return catalog.Amount{}
}

func productIDs(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok || it.ProductID == "" {
			continue
		}
		seen[it.ProductID] = struct{}{}
		out = append(out, it.ProductID)
	}
	return out
}
