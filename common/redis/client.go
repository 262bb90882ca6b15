package redis

import (
	"context"

	"github.com/go-redis/redis/v8"

	"thermo-bridge/common/config"
)

// Client alias so callers do not need to import go-redis directly
type Client = redis.Client

// NewRedisClient creates a Redis client from config
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping tests the Redis connection
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close closes the Redis connection
func Close(client *redis.Client) error {
	return client.Close()
}
