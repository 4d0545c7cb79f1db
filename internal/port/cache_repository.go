package port

import (
	"context"
	"time"
)

type CacheStore interface {
	// Get returns the cached value, or ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put stores a value with a TTL; ttl<=0 means no expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Forget evicts a key; evicting a missing key is not an error.
	Forget(ctx context.Context, key string) error
}

// AtomicIncrementer is an optional CacheStore capability. Stores that
// implement it get O(1) list-version bumps without a read-modify-write race.
type AtomicIncrementer interface {
	Increment(ctx context.Context, key string) (int64, error)
}

// CacheInvalidator is the slice of the versioned cache the inventory job
// depends on.
type CacheInvalidator interface {
	InvalidateByProducts(ctx context.Context, productIDs []int64) error
}
