package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/common"
)

type failingAllower struct{}

func (failingAllower) Allow(context.Context, string, time.Duration, int) (bool, int, time.Time, error) {
	return false, 0, time.Time{}, errors.New("redis down")
}

func analysisLimit(t *testing.T, max int) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	h := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Key: ByClient("analysis"), Window: time.Minute, Max: max},
	}
	return h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func analysisRequest(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/shipping-analysis", nil)
	req.RemoteAddr = ip + ":40000"
	return req
}

func TestMiddlewareLimitsPerClient(t *testing.T) {
	handler := analysisLimit(t, 1)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, analysisRequest("198.51.100.1"))
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, analysisRequest("198.51.100.1"))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Contains(t, second.Body.String(), "RATE_LIMITED")
	require.NotEmpty(t, second.Header().Get("Retry-After"))

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, analysisRequest("198.51.100.2"))
	require.Equal(t, http.StatusOK, other.Code)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	var reported error
	handler := Handler{
		Limiter: failingAllower{},
		Config:  Config{Key: ByClient("analysis"), Window: time.Second, Max: 1},
		OnError: func(err error) { reported = err },
	}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, analysisRequest("203.0.113.5"))
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualError(t, reported, "redis down")
	require.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestMiddlewareWithoutLimiterPassesThrough(t *testing.T) {
	handler := Handler{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, analysisRequest("203.0.113.5"))
	require.Equal(t, http.StatusAccepted, rr.Code)
}

func TestByClientPrefersUserID(t *testing.T) {
	key := ByClient("analysis")

	req := analysisRequest("192.0.2.1")
	require.Equal(t, "analysis:ip:192.0.2.1", key(req))

	req = req.WithContext(common.WithUserID(req.Context(), "u-42"))
	require.Equal(t, "analysis:user:u-42", key(req))
}
