package throttle

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and checks the connection with a ping.
// An empty addr returns a nil client, which disables rate limiting.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}
