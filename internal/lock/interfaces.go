// Package lock serializes writes to individual image records. A
// single-node deployment uses the in-memory locker; when Redis is
// enabled the same interface is backed by a distributed lock so that
// multiple API instances don't interleave updates to one record.
package lock

import (
	"context"
	"time"
)

// Locker defines the interface for distributed/local locking.
// Implementations must expire locks after the given TTL so a crashed
// holder cannot block writers forever.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another process.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)

	// Extend extends the TTL of a held lock.
	// Returns true if the lock was extended, false if it's not held.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsHeld checks if the lock is currently held.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// Image returns a lock key serializing writes to a single image record.
// Update and delete take this lock so concurrent writers don't interleave.
func (lockKeys) Image(id string) string {
	return "lock:image:" + id
}
