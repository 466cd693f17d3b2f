// Package cache backs payment webhook idempotency. Seen event ids are
// remembered for a TTL so redelivered events are acknowledged without
// being reapplied.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("key not found")

type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Add stores the key only if it is not already present and reports
	// whether it was stored. This is the atomic first-writer-wins check
	// the webhook handler relies on.
	Add(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
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

func PaymentEventKey(eventID string) string {
	return fmt.Sprintf("payment_event:%s", eventID)
}
