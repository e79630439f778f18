package cache

import (
	"context"
	"time"
)

// Cache stores upstream catalog responses by query key.
type Cache interface {
	// Get returns ErrCacheMiss when key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete evicts key; evicting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// CacheError is a sentinel error of this package.
type CacheError string

func (e CacheError) Error() string { return string(e) }

// ErrCacheMiss indicates the key was not found in cache.
const ErrCacheMiss CacheError = "cache miss"
