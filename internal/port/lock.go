package port

import (
	"context"
	"time"
)

type Locker interface {
	// Run executes body while holding an exclusive lock on key. Acquisition
	// polls every pollInterval until waitTimeout, then fails wrapping
	// domain.ErrLockNotAcquired. Release is guaranteed, including when body
	// returns an error, and the lock expires on its own after ttl if the
	// holder crashes.
	Run(ctx context.Context, key string, ttl, waitTimeout, pollInterval time.Duration, body func(ctx context.Context) error) error
}
