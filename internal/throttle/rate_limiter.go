package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig bounds how many answers one user may submit per window
type RateLimitConfig struct {
	MaxAnswers int
	Window     time.Duration
}

// RateLimiter counts answer submissions per user in fixed Redis windows
type RateLimiter struct {
	rdb    *redis.Client
	config RateLimitConfig
}

// NewRateLimiter returns a limiter. A nil client or a zero MaxAnswers makes
// every call to Allow succeed.
func NewRateLimiter(rdb *redis.Client, config RateLimitConfig) *RateLimiter {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	return &RateLimiter{rdb: rdb, config: config}
}

// Enabled reports whether submissions are actually being counted
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.rdb != nil && rl.config.MaxAnswers > 0
}

// Allow records one submission for the user and reports whether it is within
// the limit. The window starts with the first submission.
func (rl *RateLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	if !rl.Enabled() {
		return true, nil
	}

	key := answerKey(userID)
	count, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record answer for rate limit: %w", err)
	}

	// Set expiration if first time
	if count == 1 {
		if err := rl.rdb.Expire(ctx, key, rl.config.Window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(rl.config.MaxAnswers), nil
}

func answerKey(userID string) string {
	return fmt.Sprintf("rate:answer:%s", userID)
}
