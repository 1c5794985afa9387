package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chathub/sessionhub/internal/contextkey"
)

// ConnectionRateLimiter is a Redis-backed token bucket guarding the HTTP
// connection-establishment surface (WebSocketHandler calls Allow before the
// upgrade; the REST auth routes are not throttled by it) — a coarse,
// cross-node-shared throttle distinct from the
// per-(user, action) in-process sliding window of security/ratelimit, which
// polices individual hub operations once a session is already connected.
type ConnectionRateLimiter struct {
	redisClient *redis.Client
	capacity    int64
	rate        float64
}

// NewConnectionRateLimiter creates a new ConnectionRateLimiter instance.
func NewConnectionRateLimiter(redisClient *redis.Client) *ConnectionRateLimiter {
	return &ConnectionRateLimiter{
		redisClient: redisClient,
		capacity:    5,
		rate:        1.0, // 1 token per second
	}
}

// Middleware applies rate limiting to HTTP requests.
func (rl *ConnectionRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := req.Context().Value(contextkey.ContextKeyUserID).(int64)
		if !ok || userID == 0 {
			http.Error(w, "Unauthorized: user id not found in context", http.StatusUnauthorized)
			return
		}

		if !rl.Allow(req.Context(), userID) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, req)
	})
}

// Allow checks if a request is allowed for a given user ID.
func (rl *ConnectionRateLimiter) Allow(ctx context.Context, userID int64) bool {
	key := fmt.Sprintf("conn_rate_limit:%d", userID)

	val, err := rl.redisClient.HMGet(ctx, key, "tokens", "last_refill").Result()
	if err != nil {
		// Fail open: a Redis outage should not take down connection establishment.
		return true
	}

	currentTokens := rl.capacity
	lastRefillTime := time.Now()

	if val[0] != nil && val[1] != nil {
		if t, err := strconv.ParseFloat(val[0].(string), 64); err == nil {
			currentTokens = int64(t)
		}
		if t, err := time.Parse(time.RFC3339Nano, val[1].(string)); err == nil {
			lastRefillTime = t
		}
	}

	now := time.Now()
	diff := now.Sub(lastRefillTime).Seconds()
	tokensToAdd := int64(diff * rl.rate)
	currentTokens = int64(math.Min(float64(rl.capacity), float64(currentTokens+tokensToAdd)))
	lastRefillTime = now

	if currentTokens >= 1 {
		currentTokens--
		rl.redisClient.HMSet(ctx, key, "tokens", currentTokens, "last_refill", lastRefillTime.Format(time.RFC3339Nano))
		return true
	}

	return false
}
