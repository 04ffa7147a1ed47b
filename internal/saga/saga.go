// Package saga implements the booking state machine: PENDING through to
// CONFIRMED, FAILED, CANCELLED, or EXPIRED, driven by HTTP requests and
// by the payment.success/payment.failed events the payment engine
// publishes.
package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/traffictacos/reservation-core/internal/apperr"
	"github.com/traffictacos/reservation-core/internal/eventbus"
	"github.com/traffictacos/reservation-core/internal/reservation"
	"github.com/traffictacos/reservation-core/internal/store"
)

// transitions mirrors the valid-next-state table every booking state
// machine in the corpus encodes explicitly rather than inferring.
var transitions = map[store.BookingStatus][]store.BookingStatus{
	store.BookingPending: {
		store.BookingConfirmed,
		store.BookingFailed,
		store.BookingCancelled,
		store.BookingExpired,
	},
}

func canTransition(from, to store.BookingStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Recorder receives saga transition metrics. *observability.Metrics
// satisfies this implicitly.
type Recorder interface {
	RecordSagaTransition(toStatus string)
}

type noopRecorder struct{}

func (noopRecorder) RecordSagaTransition(string) {}

// Saga orchestrates booking creation and the terminal transitions that
// follow it. Every transition out of PENDING is guarded by a
// compare-and-set on the booking row, so a payment-result handler and
// the expiry sweeper racing on the same booking can never both win.
type Saga struct {
	bookings   *store.BookingRepo
	outbox     *store.OutboxRepo
	seatLocker *reservation.SeatLocker
	bookingTTL time.Duration
	metrics    Recorder
}

// NewSaga builds a Saga over the given repositories and seat locker. The
// saga only ever releases seat locks on a terminal transition: a booking
// never reserves Tatkal inventory directly (that happens, if at all,
// through /inventory/tatkal/reserve before the booking exists), so the
// saga has no Tatkal state of its own to release.
func NewSaga(bookings *store.BookingRepo, outbox *store.OutboxRepo, seatLocker *reservation.SeatLocker, bookingTTL time.Duration) *Saga {
	return &Saga{bookings: bookings, outbox: outbox, seatLocker: seatLocker, bookingTTL: bookingTTL, metrics: noopRecorder{}}
}

// WithMetrics attaches a Recorder that observes every state transition.
func (s *Saga) WithMetrics(m Recorder) *Saga {
	s.metrics = m
	return s
}

// CreateBooking persists a new PENDING booking for seats already held
// under userID and publishes booking.created so the payment engine can
// pick it up. Every seat must still be locked by userID at the moment
// of booking creation; otherwise no seat is ever guaranteed sold to a
// single caller and the booking is refused with ErrSeatsNotOwned.
func (s *Saga) CreateBooking(ctx context.Context, userID string, eventID int64, seatIDs []string, amountCents int64, currency string) (*store.Booking, error) {
	for _, seatID := range seatIDs {
		if err := s.seatLocker.VerifyOwnership(ctx, eventID, seatID, userID); err != nil {
			return nil, fmt.Errorf("%w: seat %s: %v", apperr.ErrSeatsNotOwned, seatID, err)
		}
	}

	expiresAt := time.Now().Add(s.bookingTTL)

	b := &store.Booking{
		UserID:      userID,
		EventID:     eventID,
		SeatIDs:     seatIDs,
		AmountCents: amountCents,
		Status:      store.BookingPending,
		ExpiresAt:   expiresAt,
	}

	id, err := s.bookings.Create(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("saga: create booking: %w", err)
	}
	b.ID = id

	payload, err := json.Marshal(eventbus.BookingCreated{
		BookingID:   id,
		UserID:      userID,
		EventID:     eventID,
		SeatIDs:     seatIDs,
		AmountCents: amountCents,
		Currency:    currency,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("saga: marshal booking.created: %w", err)
	}

	partitionKey := fmt.Sprintf("%d", id)
	if err := s.outbox.WithTx(ctx, func(tx pgx.Tx) error {
		return s.outbox.Enqueue(ctx, tx, eventbus.TopicBookingCreated, partitionKey, payload)
	}); err != nil {
		return nil, fmt.Errorf("saga: enqueue booking.created: %w", err)
	}

	return b, nil
}

// OnPaymentSuccess transitions a booking to CONFIRMED. It is invoked by
// the payment.success consumer and is idempotent: replaying it against
// an already-confirmed booking is a no-op, matching the at-least-once
// delivery contract of the event bus.
func (s *Saga) OnPaymentSuccess(ctx context.Context, bookingID int64) error {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status == store.BookingConfirmed {
		return nil
	}
	if !canTransition(b.Status, store.BookingConfirmed) {
		return fmt.Errorf("%w: booking %d is %s", apperr.ErrBookingTerminal, bookingID, b.Status)
	}

	won, err := s.bookings.Confirm(ctx, bookingID, b.Status)
	if err != nil {
		return fmt.Errorf("saga: confirm booking: %w", err)
	}
	if !won {
		// Lost the race to the sweeper or a duplicate delivery; the
		// booking is already past PENDING, nothing more to do.
		return nil
	}
	s.metrics.RecordSagaTransition(string(store.BookingConfirmed))

	return s.publishConfirmed(ctx, b)
}

// OnPaymentFailed transitions a booking to FAILED and releases its
// seat locks.
func (s *Saga) OnPaymentFailed(ctx context.Context, bookingID int64) error {
	return s.releaseAndTransition(ctx, bookingID, store.BookingFailed)
}

// Cancel transitions a user-initiated cancellation, releasing locks the
// same way a payment failure does. It rejects the request outright if
// userID does not own the booking or if the booking already confirmed:
// a confirmed seat is sold and cannot be walked back through this path.
func (s *Saga) Cancel(ctx context.Context, bookingID int64, userID string) error {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.UserID != userID {
		return apperr.ErrBookingNotOwned
	}
	if b.Status == store.BookingConfirmed {
		return fmt.Errorf("%w: booking %d is already confirmed", apperr.ErrBookingTerminal, bookingID)
	}
	return s.releaseAndTransition(ctx, bookingID, store.BookingCancelled)
}

// ExpireSweep scans for PENDING bookings past their expiry and
// transitions each to EXPIRED, releasing its held resources. Safe to
// run concurrently with payment-result handling: the compare-and-set
// guard means only one of the two ever wins a given booking.
func (s *Saga) ExpireSweep(ctx context.Context) (int, error) {
	expired, err := s.bookings.FindExpiredPending(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("saga: find expired bookings: %w", err)
	}

	swept := 0
	for _, b := range expired {
		if err := s.releaseAndTransition(ctx, b.ID, store.BookingExpired); err != nil {
			continue
		}
		swept++
	}
	return swept, nil
}

func (s *Saga) releaseAndTransition(ctx context.Context, bookingID int64, to store.BookingStatus) error {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status != store.BookingPending {
		return nil
	}
	if !canTransition(b.Status, to) {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, b.Status, to)
	}

	won, err := s.bookings.CompareAndSetStatus(ctx, bookingID, store.BookingPending, to)
	if err != nil {
		return fmt.Errorf("saga: transition booking %d to %s: %w", bookingID, to, err)
	}
	if !won {
		return nil
	}
	s.metrics.RecordSagaTransition(string(to))

	// Seats are locked under the requesting user's id before a booking
	// exists, so releases must use the same owner id to succeed.
	_ = s.seatLocker.ReleaseMany(ctx, b.EventID, b.SeatIDs, b.UserID)

	return nil
}

func (s *Saga) publishConfirmed(ctx context.Context, b *store.Booking) error {
	payload, err := json.Marshal(eventbus.BookingConfirmed{
		BookingID:   b.ID,
		UserID:      b.UserID,
		EventID:     b.EventID,
		SeatIDs:     b.SeatIDs,
		ConfirmedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("saga: marshal booking.confirmed: %w", err)
	}

	partitionKey := fmt.Sprintf("%d", b.ID)
	return s.outbox.WithTx(ctx, func(tx pgx.Tx) error {
		return s.outbox.Enqueue(ctx, tx, eventbus.TopicBookingConfirmed, partitionKey, payload)
	})
}
