// Package lockstore provides the distributed primitive API the
// reservation engine is built on: atomic set-if-absent, compare-and-delete,
// compare-and-expire, atomic counters, and a prefix scan. Every operation
// is linearizable per key; cross-key operations are not atomic.
package lockstore

import (
	"context"
	"time"
)

// Store is the primitive API implemented by redisStore (production) and
// memoryStore (tests).
type Store interface {
	// SetIfAbsent sets key=value with the given TTL only if key does not
	// already exist. Returns true if the set happened.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the current value of key, or ("", false, nil) if absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Expire resets the TTL of key to ttl only if its current value
	// equals expected. Returns true if the TTL was updated.
	Expire(ctx context.Context, key, expected string, ttl time.Duration) (bool, error)

	// Delete unconditionally removes key.
	Delete(ctx context.Context, key string) error

	// DeleteIfEquals removes key only if its current value equals
	// expected. Returns true if the delete happened.
	DeleteIfEquals(ctx context.Context, key, expected string) (bool, error)

	// Incr atomically increments the integer counter at key by delta
	// (delta may be negative) and returns the new value. The counter is
	// created at 0 before applying delta if it does not exist.
	Incr(ctx context.Context, key string, delta int64) (int64, error)

	// Scan returns every key matching the given prefix. Implementations
	// must not block the underlying store for the duration of a large
	// scan (production uses cursor-based SCAN, never a blocking KEYS).
	Scan(ctx context.Context, prefix string) ([]string, error)

	// TTL returns the remaining time-to-live for key. A negative
	// duration with ok=false means the key does not exist; a negative
	// duration with ok=true means the key exists but has no expiry.
	TTL(ctx context.Context, key string) (ttl time.Duration, ok bool, err error)
}
