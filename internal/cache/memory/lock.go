// Package memory implements the domain lock manager and signal bus
// in-process, for the sandbox mode and tests where no Redis is available.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/updownlabs/updownd/internal/domain"
)

// LockManager implements domain.LockManager with an in-process mutex-guarded
// key set. The TTL acts as a liveness bound: an expired lock may be
// re-acquired even if its unlock function was never called.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> expiry
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]time.Time)}
}

// Acquire obtains the lock for key, returning domain.ErrLockHeld when it is
// already held and not yet expired.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := time.Now()
	if expiry, ok := lm.locks[key]; ok && now.Before(expiry) {
		return nil, domain.ErrLockHeld
	}
	expiry := now.Add(ttl)
	lm.locks[key] = expiry

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		// Only remove the lock if it is still our acquisition.
		if cur, ok := lm.locks[key]; ok && cur.Equal(expiry) {
			delete(lm.locks, key)
		}
	}
	return unlock, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
