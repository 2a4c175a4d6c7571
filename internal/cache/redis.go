package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cimars/catalog/internal/config"
)

// KeyPrefix namespaces every key the catalog writes to Redis.
const KeyPrefix = "cimars"

// Key joins parts under KeyPrefix, e.g. Key("counter", "VC") -> "cimars:counter:VC".
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}

// ConnectRedis initializes a Redis client from cfg and verifies it with a ping.
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	slog.Info("connected to Redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return rdb, nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	slog.Info("Redis connection closed")
	return nil
}
