package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lanternhq/lantern/pkg/contextkeys"
	"github.com/lanternhq/lantern/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window.
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting.
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate. Only the
	// in-process limiter honors bursts; the Redis window is flat.
	BurstSize int
}

// DefaultRateLimitConfig returns the limits for anonymous callers,
// keyed by client IP.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// PerUserRateLimitConfig returns the limits for authenticated callers,
// keyed by email.
func PerUserRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 1000,
		WindowDuration:    time.Minute,
		BurstSize:         50,
	}
}

// localBucketCapacity bounds the number of live buckets. IP-keyed
// buckets would otherwise grow with every distinct client seen.
const localBucketCapacity = 16384

// LocalRateLimiter implements a per-key token bucket, bounded by an
// LRU. It limits a single instance on its own and serves as the
// fallback when the Redis limiter is unreachable.
type LocalRateLimiter struct {
	config  *RateLimitConfig
	buckets *lru.Cache[string, *bucket]
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastUpdate time.Time
}

// NewLocalRateLimiter creates an in-process rate limiter.
func NewLocalRateLimiter(config *RateLimitConfig) *LocalRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	buckets, _ := lru.New[string, *bucket](localBucketCapacity)
	return &LocalRateLimiter{config: config, buckets: buckets}
}

// Allow checks if a request is allowed for the given key.
func (rl *LocalRateLimiter) Allow(key string) bool {
	b := rl.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastUpdate)

	// Refill tokens based on elapsed time.
	tokensToAdd := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if tokensToAdd > 0 {
		b.tokens += tokensToAdd
		maxTokens := rl.config.RequestsPerWindow + rl.config.BurstSize
		if b.tokens > maxTokens {
			b.tokens = maxTokens
		}
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Remaining returns the number of remaining tokens for a key.
func (rl *LocalRateLimiter) Remaining(key string) int {
	b, ok := rl.buckets.Get(key)
	if !ok {
		return rl.config.RequestsPerWindow + rl.config.BurstSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

func (rl *LocalRateLimiter) bucket(key string) *bucket {
	if b, ok := rl.buckets.Get(key); ok {
		return b
	}
	fresh := &bucket{
		tokens:     rl.config.RequestsPerWindow + rl.config.BurstSize,
		lastUpdate: time.Now(),
	}
	// A concurrent request may have added the bucket first; keep the
	// stored one so both requests drain the same tokens.
	if prev, ok, _ := rl.buckets.PeekOrAdd(key, fresh); ok {
		return prev
	}
	return fresh
}

// RateLimitMiddleware enforces per-caller request limits. Authenticated
// requests are limited per user email, anonymous requests per client
// IP. With a Redis client configured the counters are shared across
// instances; on Redis errors each instance falls back to its local
// token bucket.
type RateLimitMiddleware struct {
	user   *tierLimiter
	anon   *tierLimiter
	logger *observability.Logger
}

type tierLimiter struct {
	config *RateLimitConfig
	redis  *DistributedRateLimiter
	local  *LocalRateLimiter
}

// NewRateLimitMiddleware creates the rate limit middleware. A nil
// redisClient limits purely in-process.
func NewRateLimitMiddleware(redisClient *redis.Client, logger *observability.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &RateLimitMiddleware{
		user:   newTierLimiter(redisClient, PerUserRateLimitConfig(), "ratelimit:user"),
		anon:   newTierLimiter(redisClient, DefaultRateLimitConfig(), "ratelimit:anon"),
		logger: logger,
	}
}

func newTierLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *tierLimiter {
	t := &tierLimiter{
		config: config,
		local:  NewLocalRateLimiter(config),
	}
	if redisClient != nil {
		t.redis = NewDistributedRateLimiter(redisClient, config, prefix)
	}
	return t
}

// Handler wraps an HTTP handler with rate limiting.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tier, key := m.classify(r)

		allowed, remaining, reset, err := tier.allow(r.Context(), key)
		if err != nil {
			m.logger.WithError(err).WithField("key", key).
				Warn("redis rate limiter unavailable, using local limiter")
		}
		if !allowed {
			m.rateLimitExceeded(w, tier.config, reset)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(tier.config.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		next.ServeHTTP(w, r)
	})
}

// classify picks the limiter tier and key for a request. Requests that
// passed the auth middleware carry the caller's email in context.
func (m *RateLimitMiddleware) classify(r *http.Request) (*tierLimiter, string) {
	if email := contextkeys.GetUserEmail(r.Context()); email != "" {
		return m.user, "user:" + email
	}
	return m.anon, "ip:" + clientIP(r)
}

// allow runs the Redis limiter when configured and falls back to the
// local bucket on error. The returned error reports a Redis failure
// that was absorbed by the fallback.
func (t *tierLimiter) allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	reset := time.Now().Add(t.config.WindowDuration)

	if t.redis != nil {
		allowed, err := t.redis.Allow(ctx, key)
		if err == nil {
			remaining, rerr := t.redis.Remaining(ctx, key)
			if rerr != nil {
				remaining = 0
			}
			if ttl, terr := t.redis.TTL(ctx, key); terr == nil && ttl > 0 {
				reset = time.Now().Add(ttl)
			}
			return allowed, remaining, reset, nil
		}

		allowed = t.local.Allow(key)
		return allowed, t.local.Remaining(key), reset, err
	}

	allowed := t.local.Allow(key)
	return allowed, t.local.Remaining(key), reset, nil
}

func (m *RateLimitMiddleware) rateLimitExceeded(w http.ResponseWriter, config *RateLimitConfig, reset time.Time) {
	retryAfter := int(time.Until(reset).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(fmt.Sprintf(`{"error":"rate limit exceeded","retry_after":%d}`, retryAfter)))
}

// clientIP extracts the client address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// The first entry is the originating client.
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
