package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	acquired, err := locker.Acquire(ctx, "lock:image:1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// A second acquire on the same key fails while held.
	acquired, err = locker.Acquire(ctx, "lock:image:1", time.Minute)
	require.NoError(t, err)
	require.False(t, acquired)

	// A different key is independent.
	acquired, err = locker.Acquire(ctx, "lock:image:2", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	held, err := locker.IsHeld(ctx, "lock:image:1")
	require.NoError(t, err)
	require.True(t, held)

	released, err := locker.Release(ctx, "lock:image:1")
	require.NoError(t, err)
	require.True(t, released)

	held, err = locker.IsHeld(ctx, "lock:image:1")
	require.NoError(t, err)
	require.False(t, held)

	// Releasing an unheld lock reports false.
	released, err = locker.Release(ctx, "lock:image:1")
	require.NoError(t, err)
	require.False(t, released)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	acquired, err := locker.Acquire(ctx, "lock:image:1", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(20 * time.Millisecond)

	// Expired locks can be re-acquired.
	acquired, err = locker.Acquire(ctx, "lock:image:1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestMemoryLocker_Extend(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "lock:image:1", time.Minute)
	require.NoError(t, err)

	extended, err := locker.Extend(ctx, "lock:image:1", 2*time.Minute)
	require.NoError(t, err)
	require.True(t, extended)

	extended, err = locker.Extend(ctx, "lock:image:unheld", time.Minute)
	require.NoError(t, err)
	require.False(t, extended)
}

func TestMemoryLocker_AcquireWithRetry(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "lock:image:1", 30*time.Millisecond)
	require.NoError(t, err)

	// The holder expires during the retry window.
	acquired, err := locker.AcquireWithRetry(ctx, "lock:image:1", time.Minute, 5, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestKeys_Image(t *testing.T) {
	require.Equal(t, "lock:image:abc", Keys.Image("abc"))
}
