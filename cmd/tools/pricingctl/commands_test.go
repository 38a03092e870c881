package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixture = `{
  "products": [
    {"id": "0b7c6f1e-3c1a-4f55-9a43-1b2f1c9d7e01", "name": "Teh Celup", "price": "10000",
     "wholesale_price": "8000", "minimum_purchase": 5, "weight": "0.2", "shipping_categories": ["dry"]}
  ],
  "shipping_methods": [
    {"id": "regular", "name": "Reguler", "base_price": "20000", "active": true,
     "tiers": [
       {"pricing_type": "quantity", "min_value": "1", "max_value": "10", "base_price": "20000", "priority": 1},
       {"pricing_type": "quantity", "min_value": "11", "base_price": "30000", "increment_per_unit": "5000", "increment_unit_size": "5", "priority": 1}
     ]},
    {"id": "instant", "name": "Instan", "base_price": "25000", "max_quantity": 5, "active": true}
  ],
  "free_shipping_rules": []
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTierCommand(t *testing.T) {
	catalogPath := writeFile(t, "catalog.json", fixture)
	out, err := run(t, "", "tier", "--catalog", catalogPath, "--method", "regular", "--quantity", "17")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, true, got["tier_applied"])
	require.Equal(t, 40000.0, got["price"])
	require.Equal(t, true, got["eligible"])
}

func TestTierCommandReportsCapacity(t *testing.T) {
	catalogPath := writeFile(t, "catalog.json", fixture)
	out, err := run(t, "", "tier", "--catalog", catalogPath, "--method", "instant", "--quantity", "6")
	require.NoError(t, err)
	require.Contains(t, out, `"eligible": false`)
	require.Contains(t, out, "quantity_exceeded")
}

func TestTierCommandUnknownMethod(t *testing.T) {
	catalogPath := writeFile(t, "catalog.json", fixture)
	_, err := run(t, "", "tier", "--catalog", catalogPath, "--method", "drone")
	require.ErrorContains(t, err, "drone")
}

func TestAnalyzeCommandFromStdin(t *testing.T) {
	catalogPath := writeFile(t, "catalog.json", fixture)
	cart := `{"cart_items":[{"product_id":"0b7c6f1e-3c1a-4f55-9a43-1b2f1c9d7e01","quantity":6},{"product_id":"nope","quantity":1}]}`
	out, err := run(t, cart, "analyze", "--catalog", catalogPath, "--buyer", "wholesaler_approved")
	require.NoError(t, err)

	var got struct {
		Success bool   `json:"success"`
		State   string `json:"state"`
		Methods []struct {
			ID string `json:"id"`
		} `json:"available_shipping_methods"`
		Invalid []struct {
			Reason string `json:"reason"`
		} `json:"invalid_items"`
		Summary struct {
			Subtotal json.Number `json:"subtotal"`
		} `json:"cart_analysis"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.True(t, got.Success)
	require.Equal(t, "resolved", got.State)
	require.Len(t, got.Methods, 1)
	require.Equal(t, "regular", got.Methods[0].ID)
	require.Len(t, got.Invalid, 1)
	require.Equal(t, "invalid_product_id", got.Invalid[0].Reason)
	require.Equal(t, "48000.00", got.Summary.Subtotal.String())
}

func TestAnalyzeRejectsUnknownBuyer(t *testing.T) {
	catalogPath := writeFile(t, "catalog.json", fixture)
	_, err := run(t, `{"cart_items":[]}`, "analyze", "--catalog", catalogPath, "--buyer", "vip")
	require.ErrorContains(t, err, "vip")
}
