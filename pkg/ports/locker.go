package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes access to a form session across server replicas.
// Implementations that need no coordination (a single process) may be replaced by
// the session manager's in-process keyed mutexes.
type DistributedLocker interface {
	// Lock acquires the lock for key, typically a session id, held for at most ttl.
	// It blocks until acquired or until ctx is done. The returned UnlockFunc must be called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
