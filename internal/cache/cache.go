// Package cache provides the key-value store with per-entry TTL that holds
// per-game notification state. Redis backs it in production; an in-memory
// map serves development and tests.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a byte-oriented TTL key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Stats(ctx context.Context) map[string]interface{}
}
