package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/infrastructure/config"
	"github.com/cassiomorais/tripcheckout/pkg/retry"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis and waits until PING answers. The ephemeral
// tier, locks and event streams all share this client.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := retry.Do(ctx, connectRetry(cfg), func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", cfg.RedisAddr(), err)
	}
	return client, nil
}

func connectRetry(cfg *config.RedisConfig) retry.Config {
	rc := retry.DefaultConfig()
	if cfg.ConnectRetries > 0 {
		rc.MaxAttempts = uint(cfg.ConnectRetries)
	}
	if cfg.ConnectRetryDelay > 0 {
		rc.InitialDelay = cfg.ConnectRetryDelay
	}
	return rc
}
