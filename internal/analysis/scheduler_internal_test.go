package analysis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

func TestFireIgnoresReplacedTimer(t *testing.T) {
	var loads atomic.Int32
	load := func(_ context.Context, id string) (Cart, pricing.Identity, error) {
		loads.Add(1)
		return Cart{ID: id}, pricing.Identity{}, nil
	}
	s := NewScheduler(&Analyzer{}, load, time.Hour, zerolog.Nop())

	s.Schedule("cart-r")
	s.mu.Lock()
	replaced := s.timers["cart-r"]
	s.mu.Unlock()
	s.Schedule("cart-r")

	// The replaced callback lost the race with Stop and runs late.
	s.fire("cart-r", replaced)

	require.True(t, s.Pending("cart-r"))
	require.Zero(t, loads.Load())

	s.Close()
	require.False(t, s.Pending("cart-r"))
}
