package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/noah-isme/toko-checkout/internal/analysis"
	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/pricing"
	"github.com/noah-isme/toko-checkout/internal/shipping"
)

type cartFile struct {
	CartItems []analysis.ItemPayload `json:"cart_items"`
}

func newRootCmd() *cobra.Command {
	var fixturePath string

	root := &cobra.Command{
		Use:           "pricingctl",
		Short:         "Offline pricing and shipping-eligibility checks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&fixturePath, "catalog", "catalog.json", "catalog fixture (products, shipping_methods, free_shipping_rules)")

	loadCatalog := func() (*catalog.StaticSource, error) {
		f, err := os.Open(fixturePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return catalog.LoadFixture(f)
	}

	root.AddCommand(newAnalyzeCmd(loadCatalog), newTierCmd(loadCatalog))
	return root
}

func newAnalyzeCmd(loadCatalog func() (*catalog.StaticSource, error)) *cobra.Command {
	var (
		cartPath string
		buyer    string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the shipping analysis for a cart file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, ok := pricing.ParseKind(buyer)
			if !ok {
				return fmt.Errorf("unknown buyer kind %q", buyer)
			}
			src, err := loadCatalog()
			if err != nil {
				return err
			}
			payload, err := readCart(cartPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			items, invalid := analysis.NormalizeItems(payload.CartItems)
			if len(items) == 0 {
				return errors.New("cart has no valid items")
			}

			analyzer := &analysis.Analyzer{Source: src, Timeout: 5 * time.Second, Logger: zerolog.Nop()}
			who := pricing.Identity{Kind: kind, UserID: "pricingctl"}
			res := analyzer.Analyze(cmd.Context(), analysis.Cart{ID: "cli", Items: items}, who)
			return writeJSON(cmd.OutOrStdout(), analysis.NewResponse(res, invalid))
		},
	}
	cmd.Flags().StringVar(&cartPath, "cart", "-", "cart JSON with cart_items; - reads stdin")
	cmd.Flags().StringVar(&buyer, "buyer", "anonymous", "anonymous|customer|wholesaler_pending|wholesaler_approved")
	return cmd
}

func newTierCmd(loadCatalog func() (*catalog.StaticSource, error)) *cobra.Command {
	var (
		methodID string
		quantity int
		weight   string
	)
	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Show the tier and price a method charges for a load",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := decimal.NewFromString(weight)
			if err != nil {
				return fmt.Errorf("invalid weight %q: %w", weight, err)
			}
			src, err := loadCatalog()
			if err != nil {
				return err
			}
			methods, err := src.ShippingMethods(context.Background())
			if err != nil {
				return err
			}
			for _, m := range methods {
				if m.ID != methodID {
					continue
				}
				load := shipping.Load{Quantity: quantity, Weight: w}
				q := shipping.PriceMethod(m, load)
				ok, violations := shipping.Evaluate(m, nil, load)
				out := map[string]any{
					"method_id":     m.ID,
					"pricing_type":  q.PricingType,
					"tier_applied":  q.TierApplied(),
					"tier_priority": q.TierPriority(),
					"price":         common.Money(q.Price),
					"eligible":      ok,
					"violations":    violations,
				}
				if q.Tier != nil {
					out["tier"] = q.Tier
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return fmt.Errorf("shipping method %q not found or inactive", methodID)
		},
	}
	cmd.Flags().StringVar(&methodID, "method", "", "shipping method id")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "total cart quantity")
	cmd.Flags().StringVar(&weight, "weight", "0", "total cart weight")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

func readCart(path string, stdin io.Reader) (cartFile, error) {
	var r io.Reader = stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return cartFile{}, err
		}
		defer f.Close()
		r = f
	}
	var c cartFile
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return cartFile{}, fmt.Errorf("decode cart: %w", err)
	}
	return c, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
