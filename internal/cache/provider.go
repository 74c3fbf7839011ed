// Package cache provides the key-value storage backing shopping carts.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Provider defines the interface for cart and scratch storage.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// CartKey namespaces a cart scope (account id or guest token).
func CartKey(scope string) string {
	return fmt.Sprintf("cart:%s", scope)
}
