package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps idle carts for a week.
const DefaultTTL = 7 * 24 * time.Hour

// Store persists cart snapshots in Redis as single JSON values, so every read
// observes one complete snapshot.
type Store struct {
	R      *redis.Client
	TTL    time.Duration
	Prefix string
}

// NewStore builds a store with the default key prefix.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{R: client, TTL: ttl, Prefix: "cart:"}
}

// Key returns the Redis key holding cartID.
func (s *Store) Key(cartID string) string {
	return s.Prefix + cartID
}

// Get loads a snapshot.
func (s *Store) Get(ctx context.Context, cartID string) (Snapshot, error) {
	raw, err := s.R.Get(ctx, s.Key(cartID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("load cart: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode cart: %w", err)
	}
	return snap, nil
}

// Put writes snap and refreshes its expiry.
func (s *Store) Put(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.R.Set(ctx, s.Key(snap.ID), raw, s.TTL).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete removes a cart.
func (s *Store) Delete(ctx context.Context, cartID string) error {
	return s.R.Del(ctx, s.Key(cartID)).Err()
}
