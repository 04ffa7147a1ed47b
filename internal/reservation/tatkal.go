package reservation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/traffictacos/reservation-core/internal/apperr"
	"github.com/traffictacos/reservation-core/internal/lockstore"
)

// TatkalCounter implements the first-come-first-served atomic counter
// inventory used for flash-sale style events. TryReserve decrements the
// counter optimistically and compensates (increments back) on oversell
// rather than running a compare-and-swap retry loop, trading a handful of
// rejected requests at the zero boundary for much lower contention.
type TatkalCounter struct {
	store   lockstore.Store
	metrics Recorder
}

func NewTatkalCounter(store lockstore.Store) *TatkalCounter {
	return &TatkalCounter{store: store, metrics: noopRecorder{}}
}

// WithMetrics attaches a Recorder that observes every reservation attempt.
func (t *TatkalCounter) WithMetrics(m Recorder) *TatkalCounter {
	t.metrics = m
	return t
}

func inventoryKey(eventID int64) string {
	return fmt.Sprintf("inventory:event:%d", eventID)
}

// Initialize sets the starting count for eventID. Calling it again resets
// the counter; callers are responsible for guarding against accidental
// reinitialization of a live sale.
func (t *TatkalCounter) Initialize(ctx context.Context, eventID int64, count int64) error {
	if err := t.store.Delete(ctx, inventoryKey(eventID)); err != nil {
		return fmt.Errorf("reservation: reset inventory: %w", err)
	}
	if _, err := t.store.Incr(ctx, inventoryKey(eventID), count); err != nil {
		return fmt.Errorf("reservation: initialize inventory: %w", err)
	}
	return nil
}

// TryReserve decrements the counter by quantity. If the resulting value
// would be negative, it compensates by incrementing back by quantity and
// returns apperr.ErrInventorySoldOut. The raw (possibly negative,
// pre-compensation) value is what drives this decision; only Remaining
// clamps the externally visible value to zero.
func (t *TatkalCounter) TryReserve(ctx context.Context, eventID int64, quantity int64) error {
	if quantity <= 0 {
		return apperr.ErrInvalidRequest
	}
	key := inventoryKey(eventID)
	remaining, err := t.store.Incr(ctx, key, -quantity)
	if err != nil {
		t.metrics.RecordTatkalReservation("error")
		return fmt.Errorf("reservation: decrement inventory: %w", err)
	}
	if remaining < 0 {
		if _, cerr := t.store.Incr(ctx, key, quantity); cerr != nil {
			t.metrics.RecordTatkalReservation("error")
			return fmt.Errorf("reservation: compensate inventory after oversell: %w", cerr)
		}
		t.metrics.RecordTatkalReservation("sold_out")
		t.metrics.SetTatkalRemaining(fmt.Sprintf("%d", eventID), 0)
		return apperr.ErrInventorySoldOut
	}
	t.metrics.RecordTatkalReservation("reserved")
	visible := remaining
	if visible < 0 {
		visible = 0
	}
	t.metrics.SetTatkalRemaining(fmt.Sprintf("%d", eventID), float64(visible))
	return nil
}

// Release returns quantity seats back to the counter, e.g. when a
// booking built on a Tatkal reservation is cancelled or expires.
func (t *TatkalCounter) Release(ctx context.Context, eventID int64, quantity int64) error {
	if quantity <= 0 {
		return apperr.ErrInvalidRequest
	}
	if _, err := t.store.Incr(ctx, inventoryKey(eventID), quantity); err != nil {
		return fmt.Errorf("reservation: release inventory: %w", err)
	}
	return nil
}

// Remaining returns the externally-visible remaining count, clamped to
// zero so a transient negative value from an in-flight compensating
// increment is never surfaced to callers.
func (t *TatkalCounter) Remaining(ctx context.Context, eventID int64) (int64, error) {
	v, ok, err := t.store.Get(ctx, inventoryKey(eventID))
	if err != nil {
		return 0, fmt.Errorf("reservation: read inventory: %w", err)
	}
	if !ok {
		return 0, apperr.ErrInventoryNotFound
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("reservation: parse inventory value %q: %w", v, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// IsSoldOut reports whether the externally-visible remaining count is 0.
func (t *TatkalCounter) IsSoldOut(ctx context.Context, eventID int64) (bool, error) {
	n, err := t.Remaining(ctx, eventID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Delete removes the counter entirely.
func (t *TatkalCounter) Delete(ctx context.Context, eventID int64) error {
	return t.store.Delete(ctx, inventoryKey(eventID))
}

// Reset is an alias for Initialize, named for call sites that are
// conceptually resetting an existing sale rather than starting one.
func (t *TatkalCounter) Reset(ctx context.Context, eventID int64, count int64) error {
	return t.Initialize(ctx, eventID, count)
}
