package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no coupon matches the code.
var ErrNotFound = errors.New("coupon not found")

// Finder looks up coupons by code.
type Finder interface {
	ByCode(ctx context.Context, code string) (Coupon, error)
}

// Querier is the subset of pgxpool.Pool used by Store.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads coupons from Postgres.
type Store struct {
	DB Querier
}

const sqlCouponByCode = `SELECT code, type, discount_value::text, min_purchase::text, applies_to, min_quantity,
	valid_from, expires_at, active
FROM coupons
WHERE upper(code) = upper($1)`

// ByCode implements Finder. Codes match case-insensitively.
func (s *Store) ByCode(ctx context.Context, code string) (Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Coupon{}, ErrNotFound
	}
	var (
		c           Coupon
		typ, scope  string
		value, minP string
		minQty      int32
		validFrom   *time.Time
		expiresAt   *time.Time
	)
	err := s.DB.QueryRow(ctx, sqlCouponByCode, code).Scan(&c.Code, &typ, &value, &minP, &scope, &minQty, &validFrom, &expiresAt, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("load coupon: %w", err)
	}
	c.Type = Type(strings.ToLower(typ))
	c.AppliesTo = Scope(strings.ToLower(scope))
	c.DiscountValue = parseDecimal(value)
	c.MinPurchase = parseDecimal(minP)
	c.MinQuantity = int(minQty)
	c.ValidFrom = validFrom
	c.ExpiresAt = expiresAt
	return c, nil
}

// MapFinder serves coupons from memory, keyed by upper-case code.
type MapFinder map[string]Coupon

// ByCode implements Finder.
func (m MapFinder) ByCode(_ context.Context, code string) (Coupon, error) {
	c, ok := m[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Coupon{}, ErrNotFound
	}
	return c, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
