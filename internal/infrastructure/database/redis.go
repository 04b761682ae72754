package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/studylog/core/internal/infrastructure/config"
)

// NewRedis connects to Redis, retrying a few times while the server starts
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	const maxRetries = 3
	retryDelay := time.Second

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.GetAddr(),
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			return client, nil
		}
		client.Close()

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}
	}
	return nil, fmt.Errorf("failed to connect to redis at %s after %d attempts: %w", cfg.GetAddr(), maxRetries, lastErr)
}
