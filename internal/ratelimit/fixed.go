package ratelimit

import (
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewStore wires a fixed-window limiter store backed by Redis.
func NewStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
}

// Fixed enforces a fixed-window quota using ulule/limiter. It guards the
// coupon validation endpoint where codes could otherwise be enumerated.
type Fixed struct {
	Limiter *limiter.Limiter
	Key     func(*http.Request) string
	OnError func(error)
}

// NewFixed builds a Fixed limiter allowing max requests per period.
func NewFixed(store limiter.Store, period time.Duration, max int64, key func(*http.Request) string) *Fixed {
	rate := limiter.Rate{Period: period, Limit: max}
	return &Fixed{Limiter: limiter.New(store, rate), Key: key}
}

// Middleware rejects requests once the window quota is spent.
func (f *Fixed) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f == nil || f.Limiter == nil || f.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		lctx, err := f.Limiter.Get(r.Context(), f.Key(r))
		if err != nil {
			if f.OnError != nil {
				f.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}
		resetAt := time.Unix(lctx.Reset, 0)
		writeHeaders(w, lctx.Limit, lctx.Remaining, resetAt)
		if lctx.Reached {
			tooMany(w, resetAt)
			return
		}
		next.ServeHTTP(w, r)
	})
}
