package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/formtree/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// locks hands out one mutex per key and forgets it once nobody holds or waits on it.
type locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newLocks() *locks {
	return &locks{entries: make(map[string]*lockEntry)}
}

func (l *locks) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *locks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.entries, key)
	}
}

func (l *locks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// WithLock executes fn while holding the session's local lock and, when configured,
// its distributed lock.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.locks.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.locks.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer m.unlock(ctx, sessionID, unlock)
	}

	return fn(ctx)
}

func (m *Manager) unlock(ctx context.Context, sessionID string, unlock ports.UnlockFunc) {
	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
			"session_id", sessionID,
			"err", err,
		)
	}
}
