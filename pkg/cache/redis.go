package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-resource-core/pkg/config"
)

// Required reports whether any configured component needs Redis: the stats
// cache or the cross-instance room lock.
func Required(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Stats.CacheEnabled || cfg.Booking.LockBackend == config.LockBackendRedis
}

// Options maps configuration onto client options. Read timeouts stay short so
// a slow cache degrades to direct reads instead of stalling requests.
func Options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(Options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
