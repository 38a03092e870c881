package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims entries older than the window, admits the request only
// while the window has room, and returns the score of the oldest entry so the
// caller can tell when a slot frees up. Rejected requests are not recorded.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, math.ceil(window / 1000))
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {allowed, limit - count, oldest[2] or ''}
`)

// Limiter is a sliding-window limiter over Redis sorted sets, one set per key.
type Limiter struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

// Allow records one request for key when the window has room.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	nowMicro := now.UnixMicro()
	res, err := slidingWindow.Run(ctx, l.Client, []string{l.Prefix + key},
		nowMicro, window.Microseconds(), max, uuid.NewString()).Slice()
	if err != nil {
		return false, 0, now.Add(window), err
	}

	allowed := toInt64(res[0]) == 1
	remaining := int(toInt64(res[1]))
	if remaining < 0 {
		remaining = 0
	}
	oldest := nowMicro
	if s, ok := res[2].(string); ok && s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			oldest = int64(v)
		}
	}
	return allowed, remaining, time.UnixMicro(oldest + window.Microseconds()), nil
}

func toInt64(v any) int64 {
	n, _ := v.(int64)
	return n
}
