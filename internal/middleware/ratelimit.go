package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter implements fixed-window rate limiting per tenant using Redis
type RateLimiter struct {
	redis        *redis.Client
	logger       *zap.Logger
	defaultLimit int // requests per minute
	window       time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient *redis.Client, logger *zap.Logger, defaultLimit int) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		redis:        redisClient,
		logger:       logger,
		defaultLimit: defaultLimit,
		window:       time.Minute,
	}
}

// Handler wraps an HTTP handler with per-tenant rate limiting. Requests
// without a resolved tenant, and Redis failures, pass through rather than
// blocking traffic.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		t := TenantFrom(ctx)
		if t == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := rl.checkLimit(ctx, t.PoolKey())
		if err != nil {
			rl.logger.Warn("rate limit check failed, allowing request",
				zap.String("tenant", t.PoolKey()), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			rl.sendError(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// checkLimit checks if the tenant is within rate limits
func (rl *RateLimiter) checkLimit(ctx context.Context, tenantID string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%d", tenantID, time.Now().Unix()/60)

	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment counter: %w", err)
	}

	// Set expiration on first request
	if count == 1 {
		rl.redis.Expire(ctx, key, rl.window)
	}

	return count <= int64(rl.defaultLimit), nil
}

func (rl *RateLimiter) sendError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]any{
		"error":       message,
		"retry_after": rl.window.Seconds(),
	})
}
