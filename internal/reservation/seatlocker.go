// Package reservation implements the seat-locking and Tatkal inventory
// components on top of internal/lockstore's primitive API.
package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/traffictacos/reservation-core/internal/apperr"
	"github.com/traffictacos/reservation-core/internal/lockstore"
)

// SeatLocker implements per-seat distributed locking with re-entrant
// ownership: a caller that already holds a lock may re-lock or extend it.
type SeatLocker struct {
	store   lockstore.Store
	metrics Recorder
}

func NewSeatLocker(store lockstore.Store) *SeatLocker {
	return &SeatLocker{store: store, metrics: noopRecorder{}}
}

// WithMetrics attaches a Recorder that observes every lock attempt.
func (l *SeatLocker) WithMetrics(m Recorder) *SeatLocker {
	l.metrics = m
	return l
}

func seatKey(eventID int64, seatID string) string {
	return fmt.Sprintf("lock:event:%d:seat:%s", eventID, seatID)
}

// TryLock attempts to acquire the lock for a single seat. Re-entrant: if
// the lock is already held by ownerID, the TTL is refreshed and this
// call succeeds.
func (l *SeatLocker) TryLock(ctx context.Context, eventID int64, seatID, ownerID string, ttl time.Duration) error {
	start := time.Now()
	key := seatKey(eventID, seatID)
	ok, err := l.store.SetIfAbsent(ctx, key, ownerID, ttl)
	if err != nil {
		l.metrics.RecordLockAttempt("try_lock", "error", time.Since(start))
		return fmt.Errorf("reservation: try lock seat %s: %w", seatID, err)
	}
	if ok {
		l.metrics.RecordLockAttempt("try_lock", "acquired", time.Since(start))
		return nil
	}
	extended, err := l.store.Expire(ctx, key, ownerID, ttl)
	if err != nil {
		l.metrics.RecordLockAttempt("try_lock", "error", time.Since(start))
		return fmt.Errorf("reservation: refresh lock seat %s: %w", seatID, err)
	}
	if extended {
		l.metrics.RecordLockAttempt("try_lock", "acquired", time.Since(start))
		return nil
	}
	l.metrics.RecordLockAttempt("try_lock", "conflict", time.Since(start))
	return apperr.ErrSeatLocked
}

// TryLockMany locks every seat in seatIDs or none at all. On partial
// failure, any seats already locked by this call are released before
// returning, so the caller never observes a half-acquired set.
func (l *SeatLocker) TryLockMany(ctx context.Context, eventID int64, seatIDs []string, ownerID string, ttl time.Duration) error {
	acquired := make([]string, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		if err := l.TryLock(ctx, eventID, seatID, ownerID, ttl); err != nil {
			for _, done := range acquired {
				_, _ = l.store.DeleteIfEquals(ctx, seatKey(eventID, done), ownerID)
			}
			return err
		}
		acquired = append(acquired, seatID)
	}
	return nil
}

// Release releases a single seat lock if owned by ownerID. Releasing an
// already-unlocked or foreign-owned seat is not an error; it is a no-op.
func (l *SeatLocker) Release(ctx context.Context, eventID int64, seatID, ownerID string) error {
	_, err := l.store.DeleteIfEquals(ctx, seatKey(eventID, seatID), ownerID)
	if err != nil {
		return fmt.Errorf("reservation: release seat %s: %w", seatID, err)
	}
	return nil
}

// ReleaseMany releases every seat in seatIDs owned by ownerID, continuing
// past individual failures and returning the first error encountered.
func (l *SeatLocker) ReleaseMany(ctx context.Context, eventID int64, seatIDs []string, ownerID string) error {
	var firstErr error
	for _, seatID := range seatIDs {
		if err := l.Release(ctx, eventID, seatID, ownerID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsLocked reports whether seatID is currently locked for eventID.
func (l *SeatLocker) IsLocked(ctx context.Context, eventID int64, seatID string) (bool, error) {
	_, ok, err := l.store.Get(ctx, seatKey(eventID, seatID))
	return ok, err
}

// Owner returns the current owner of seatID's lock, if any.
func (l *SeatLocker) Owner(ctx context.Context, eventID int64, seatID string) (string, bool, error) {
	return l.store.Get(ctx, seatKey(eventID, seatID))
}

// TTL returns the remaining lock duration for seatID.
func (l *SeatLocker) TTL(ctx context.Context, eventID int64, seatID string) (time.Duration, bool, error) {
	return l.store.TTL(ctx, seatKey(eventID, seatID))
}

// VerifyOwnership confirms ownerID currently holds seatID's lock. It
// returns apperr.ErrSeatNotLocked if the seat is not locked at all and
// apperr.ErrLockOwnerMismatch if another owner holds it.
func (l *SeatLocker) VerifyOwnership(ctx context.Context, eventID int64, seatID, ownerID string) error {
	owner, ok, err := l.Owner(ctx, eventID, seatID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrSeatNotLocked
	}
	if owner != ownerID {
		return apperr.ErrLockOwnerMismatch
	}
	return nil
}

// LockedSeatsForEvent returns every currently-locked seat id for eventID
// mapped to its owner.
func (l *SeatLocker) LockedSeatsForEvent(ctx context.Context, eventID int64) (map[string]string, error) {
	prefix := fmt.Sprintf("lock:event:%d:seat:", eventID)
	keys, err := l.store.Scan(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("reservation: scan locked seats: %w", err)
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		owner, ok, err := l.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		out[key[len(prefix):]] = owner
	}
	return out, nil
}
