package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-checkout/internal/analysis"
	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

var (
	// ErrNotFound is returned when the cart does not exist or has expired.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when the product is not in the cart.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrProductNotFound is returned when the catalog has no such product.
	ErrProductNotFound = errors.New("product not found")
	// ErrForbidden is returned when a cart owned by one user is touched by another.
	ErrForbidden = errors.New("cart belongs to another user")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrBelowMinimum is returned when a change would leave a wholesale line under its minimum.
	ErrBelowMinimum = errors.New("below minimum purchase")
)

// MinimumError carries the failed minimum-purchase check.
type MinimumError struct {
	ProductID string
	Check     pricing.MinimumCheck
}

func (e *MinimumError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBelowMinimum, e.Check.Message)
}

// Unwrap lets errors.Is match ErrBelowMinimum.
func (e *MinimumError) Unwrap() error { return ErrBelowMinimum }

// Notifier is told about every committed cart change.
type Notifier interface {
	Schedule(cartID string)
	Forget(cartID string)
}

// Service owns cart mutations. Each mutation holds a per-cart lock, writes a
// whole new snapshot and schedules a re-analysis.
type Service struct {
	Store    *Store
	Locker   lock.Locker
	LockTTL  time.Duration
	Catalog  catalog.Source
	Coupons  coupon.Finder
	Notifier Notifier
	Now      func() time.Time
}

// Create starts an empty cart for who.
func (s *Service) Create(ctx context.Context, who pricing.Identity) (Snapshot, error) {
	now := s.now()
	snap := Snapshot{
		ID:        uuid.NewString(),
		Version:   1,
		OwnerID:   who.UserID,
		OwnerKind: who.Kind.String(),
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Put(ctx, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Get returns the current snapshot.
func (s *Service) Get(ctx context.Context, cartID string, who pricing.Identity) (Snapshot, error) {
	snap, err := s.Store.Get(ctx, cartID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := authorize(snap, who); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Load reads the snapshot for a background analysis.
func (s *Service) Load(ctx context.Context, cartID string) (analysis.Cart, pricing.Identity, error) {
	snap, err := s.Store.Get(ctx, cartID)
	if err != nil {
		return analysis.Cart{}, pricing.Identity{}, err
	}
	return snap.Analysis(), snap.Identity(), nil
}

// AddItem adds quantity units of productID. The resulting line must satisfy
// the buyer's minimum purchase.
func (s *Service) AddItem(ctx context.Context, cartID string, who pricing.Identity, productID string, quantity int) (Snapshot, error) {
	if quantity < 1 {
		return Snapshot{}, ErrInvalidQuantity
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.mutate(ctx, cartID, who, func(snap *Snapshot) error {
		idx := snap.find(p.ID)
		next := quantity
		if idx >= 0 {
			next += snap.Items[idx].Quantity
		}
		if check := pricing.ValidateMinimum(p, next, who); !check.IsValid {
			return &MinimumError{ProductID: p.ID, Check: check}
		}
		if idx >= 0 {
			snap.Items[idx].Quantity = next
			return nil
		}
		snap.Items = append(snap.Items, Item{ProductID: p.ID, Name: p.Name, Quantity: next, Weight: p.Weight, AddedAt: s.now()})
		return nil
	})
}

// UpdateQuantity sets the quantity of a line. Decrements below the minimum
// purchase are rejected.
func (s *Service) UpdateQuantity(ctx context.Context, cartID string, who pricing.Identity, productID string, quantity int) (Snapshot, error) {
	if quantity < 1 {
		return Snapshot{}, ErrInvalidQuantity
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.mutate(ctx, cartID, who, func(snap *Snapshot) error {
		idx := snap.find(p.ID)
		if idx < 0 {
			return ErrItemNotFound
		}
		if check := pricing.ValidateMinimum(p, quantity, who); !check.IsValid && quantity < snap.Items[idx].Quantity {
			return &MinimumError{ProductID: p.ID, Check: check}
		}
		snap.Items[idx].Quantity = quantity
		return nil
	})
}

// RemoveItem drops a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID string, who pricing.Identity, productID string) (Snapshot, error) {
	productID = strings.ToLower(strings.TrimSpace(productID))
	return s.mutate(ctx, cartID, who, func(snap *Snapshot) error {
		idx := snap.find(productID)
		if idx < 0 {
			return ErrItemNotFound
		}
		snap.Items = append(snap.Items[:idx], snap.Items[idx+1:]...)
		return nil
	})
}

// Clear empties the cart and drops its coupon.
func (s *Service) Clear(ctx context.Context, cartID string, who pricing.Identity) (Snapshot, error) {
	return s.mutate(ctx, cartID, who, func(snap *Snapshot) error {
		snap.Items = []Item{}
		snap.CouponCode = ""
		return nil
	})
}

// ApplyCoupon records code on the cart. Unknown codes are rejected; codes that
// are known but not yet usable are kept and evaluated at checkout.
func (s *Service) ApplyCoupon(ctx context.Context, cartID string, who pricing.Identity, code string) (Snapshot, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if s.Coupons != nil {
		c, err := s.Coupons.ByCode(ctx, code)
		if err != nil {
			return Snapshot{}, err
		}
		code = c.Code
	}
	return s.mutate(ctx, cartID, who, func(snap *Snapshot) error {
		snap.CouponCode = code
		return nil
	})
}

// RemoveCoupon clears the applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, cartID string, who pricing.Identity) (Snapshot, error) {
	return s.mutate(ctx, cartID, who, func(snap *Snapshot) error {
		snap.CouponCode = ""
		return nil
	})
}

// Delete removes the cart entirely.
func (s *Service) Delete(ctx context.Context, cartID string, who pricing.Identity) error {
	if _, err := s.Get(ctx, cartID, who); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, cartID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	if s.Notifier != nil {
		s.Notifier.Forget(cartID)
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, cartID string, who pricing.Identity, fn func(*Snapshot) error) (Snapshot, error) {
	var out Snapshot
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	err := s.Locker.WithLock(ctx, lock.Key("cart", cartID), ttl, func(ctx context.Context) error {
		snap, err := s.Store.Get(ctx, cartID)
		if err != nil {
			return err
		}
		if err := authorize(snap, who); err != nil {
			return err
		}
		if err := fn(&snap); err != nil {
			return err
		}
		if snap.OwnerID == "" && who.UserID != "" {
			snap.OwnerID = who.UserID
		}
		snap.OwnerKind = who.Kind.String()
		snap.Version++
		snap.UpdatedAt = s.now()
		if err := s.Store.Put(ctx, snap); err != nil {
			return err
		}
		out = snap
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if s.Notifier != nil {
		s.Notifier.Schedule(cartID)
	}
	return out, nil
}

func (s *Service) product(ctx context.Context, productID string) (catalog.Product, error) {
	id := strings.ToLower(strings.TrimSpace(productID))
	products, err := s.Catalog.Products(ctx, []string{id})
	if err != nil {
		return catalog.Product{}, fmt.Errorf("load product: %w", err)
	}
	p, ok := products[id]
	if !ok {
		return catalog.Product{}, ErrProductNotFound
	}
	return p, nil
}

func authorize(snap Snapshot, who pricing.Identity) error {
	if snap.OwnerID != "" && snap.OwnerID != who.UserID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
