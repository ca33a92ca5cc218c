// Package cache abstracts the TTL key/value store backing presence and
// delivery tracking. Backends must surface key expirations as events on a
// single stream: the expiry of a tracked key is what drives fallback
// notifications and offline transitions.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache: key not found")

type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// Expired yields the names of keys that reached their TTL without being
	// deleted first. The stream is meant for a single consumer.
	Expired() <-chan string

	Close() error
}
