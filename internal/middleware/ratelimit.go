package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meetup-backend/internal/config"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// tokenBucket refills capacity tokens evenly over the window and takes
// one per request. Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local interval_ms = tonumber(ARGV[3])
	local ttl_seconds = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals)
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// refundToken gives back one token without going over capacity
var refundToken = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local tokens = tonumber(redis.call('HGET', key, 'tokens'))
	if tokens == nil then
		return 0
	end
	if tokens < capacity then
		tokens = tokens + 1
		redis.call('HSET', key, 'tokens', tokens)
	end
	return tokens
`)

// RateLimit limits requests per client IP (and user, when known) with a
// token bucket kept in Redis. A nil client disables limiting; Redis
// errors let the request through.
func RateLimit(rdb *redis.Client, prefix, name string, bucket config.BucketConfig) func(http.Handler) http.Handler {
	return rateLimit(rdb, prefix, name, bucket, false)
}

// FailureRateLimit is RateLimit for credential checks: requests that
// end with a status below 400 get their token back, so only failed
// attempts use up the bucket.
func FailureRateLimit(rdb *redis.Client, prefix, name string, bucket config.BucketConfig) func(http.Handler) http.Handler {
	return rateLimit(rdb, prefix, name, bucket, true)
}

func rateLimit(rdb *redis.Client, prefix, name string, bucket config.BucketConfig, refundSuccess bool) func(http.Handler) http.Handler {
	if rdb == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	interval := bucket.Window / time.Duration(bucket.Capacity)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ttl := int64(math.Ceil(bucket.Window.Seconds())) * 2

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateKey(prefix, name, r)
			vals, err := tokenBucket.Run(r.Context(), rdb, []string{key},
				time.Now().UnixMilli(), bucket.Capacity, interval.Milliseconds(), ttl,
			).Int64Slice()
			if err != nil || len(vals) != 3 {
				log.Warn().Err(err).Str("key", key).Msg("Rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("RateLimit-Limit", strconv.Itoa(bucket.Capacity))
			w.Header().Set("RateLimit-Remaining", strconv.FormatInt(vals[1], 10))

			if vals[0] != 1 {
				secs := int(math.Ceil(float64(vals[2]) / 1000.0))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				respondError(w, "Too many requests, please try again later", http.StatusTooManyRequests)
				return
			}

			if !refundSuccess {
				next.ServeHTTP(w, r)
				return
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if succeeded(ww.Status()) {
				if err := refundToken.Run(r.Context(), rdb, []string{key}, bucket.Capacity).Err(); err != nil {
					log.Warn().Err(err).Str("key", key).Msg("Failed to refund rate limit token")
				}
			}
		})
	}
}

// succeeded reports whether a response status counts as a success.
// A handler that never wrote a header answered 200.
func succeeded(status int) bool {
	return status == 0 || status < http.StatusBadRequest
}

func rateKey(prefix, name string, r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{prefix, name, "ip", ip}
	if uid := GetUserID(r.Context()); uid != "" {
		parts = append(parts, "user", uid)
	}
	return strings.Join(parts, ":")
}
