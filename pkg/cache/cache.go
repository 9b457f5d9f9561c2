// Package cache is a small key/value store with TTLs. Sessions live here.
// The memory store serves single-process deployments and tests; the Redis
// store lets several instances share state.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/farmshop/storefront/config"
	"github.com/farmshop/storefront/pkg/logger"
)

// ErrMiss is returned by Get for absent or expired keys.
var ErrMiss = errors.New("cache: miss")

// Store is implemented by every cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Connect builds the store named by CACHE_DRIVER. When Redis is selected
// but unreachable it logs a warning and falls back to memory.
func Connect(ctx context.Context) Store {
	if config.CacheDriver() != "redis" {
		return NewMemory()
	}

	r, err := DialRedis(ctx, config.RedisAddr(), config.RedisPassword())
	if err != nil {
		logger.Warn("cache: redis unavailable, using memory store", "error", err)
		return NewMemory()
	}
	return r
}

// GetJSON loads key into dest. It reports false on a miss.
func GetJSON(ctx context.Context, s Store, key string, dest any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v as JSON under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}
