package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/updownlabs/updownd/internal/domain"
)

func TestLockManagerAcquireRelease(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	unlock, err := lm.Acquire(ctx, "market:1", time.Minute)
	require.NoError(t, err)

	// Second acquisition of the same key fails while held.
	_, err = lm.Acquire(ctx, "market:1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	// Different keys are independent.
	unlock2, err := lm.Acquire(ctx, "market:2", time.Minute)
	require.NoError(t, err)
	unlock2()

	unlock()
	unlock3, err := lm.Acquire(ctx, "market:1", time.Minute)
	require.NoError(t, err)
	unlock3()
}

func TestLockManagerUnlockIdempotent(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	unlock, err := lm.Acquire(ctx, "claim:1:alice", time.Minute)
	require.NoError(t, err)
	unlock()
	unlock()

	// A stale double-unlock must not release a newer acquisition.
	_, err = lm.Acquire(ctx, "claim:1:alice", time.Minute)
	require.NoError(t, err)
	unlock()
	_, err = lm.Acquire(ctx, "claim:1:alice", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestLockManagerExpiry(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	_, err := lm.Acquire(ctx, "market:1", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	// Expired locks may be re-acquired even without an unlock.
	unlock, err := lm.Acquire(ctx, "market:1", time.Minute)
	require.NoError(t, err)
	unlock()
}
