package common

import (
	"context"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultIdempotencyTTL bounds how long a used Idempotency-Key is remembered.
const DefaultIdempotencyTTL = 24 * time.Hour

// Idem provides an Idempotency-Key middleware backed by Redis. Keys are
// scoped to the caller and the request path, so one key cannot collide
// across carts or users.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func idemKey(r *http.Request, header string) string {
	owner, _ := UserID(r.Context())
	return "idem:" + Fingerprint(r.Method, r.URL.Path, owner, header)
}

// Middleware rejects a replayed Idempotency-Key with 409 IDEMPOTENT_REPLAY.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = DefaultIdempotencyTTL
		}
		ctx := r.Context()
		key := idemKey(r, header)
		ok, err := i.R.SetNX(ctx, key, "locked", ttl).Result()
		if err != nil {
			WriteAppError(w, Internal("idempotency store error", err))
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		defer func() {
			_ = i.R.Expire(context.WithoutCancel(ctx), key, ttl).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
