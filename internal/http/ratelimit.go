package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hairwise/internal/contextutil"
)

const (
	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterStaleThreshold  = 10 * time.Minute
)

// RateLimiter decides whether a request under the given key may proceed.
// Injected into the middleware so tests and future deployments can swap the
// in-memory implementation for a shared one.
type RateLimiter interface {
	Allow(key string) bool
}

// UserRateLimiter implements per-user rate limiting with a token bucket per
// key. Cleanup of stale entries happens inline during Allow calls.
type UserRateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter creates a limiter allowing perMinute requests per key,
// with up to burst requests at once.
func NewUserRateLimiter(perMinute, burst int) *UserRateLimiter {
	return &UserRateLimiter{
		visitors:    make(map[string]*visitor),
		limit:       rate.Limit(float64(perMinute) / 60.0),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

// Allow reports whether a request under the key may proceed, consuming one
// token if so.
func (rl *UserRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	// Periodic cleanup of stale entries
	if now.Sub(rl.lastCleanup) > rateLimiterCleanupInterval {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rateLimiterStaleThreshold {
				delete(rl.visitors, k)
			}
		}
		rl.lastCleanup = now
	}

	v, exists := rl.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(rl.limit, rl.burst)
		rl.visitors[key] = &visitor{
			limiter:  limiter,
			lastSeen: now,
		}
		limiter.Allow()
		return true
	}

	v.lastSeen = now
	return v.limiter.Allow()
}

// RateLimitMiddleware limits requests per authenticated user. Requests
// without a user header pass through; the handler rejects them anyway.
func RateLimitMiddleware(rl RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(userIDHeader)
			if userID != "" && !rl.Allow(userID) {
				ctx := r.Context()
				contextutil.LoggerFromContext(ctx).WarnContext(ctx, "rate limit exceeded", "user_id", userID)
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many messages. Please wait a moment.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
