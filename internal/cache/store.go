// Package cache provides the key-value store abstraction used by the
// recommendation and trend pools, plus a typed JSON codec on top of it.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key-value cache with per-key expiry.
// Implementations wrap backend failures in apierr.ErrCacheUnavailable.
type Store interface {
	// Get returns ok=false when the key is absent or expired.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	// Set replaces the whole value under key in a single write.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
