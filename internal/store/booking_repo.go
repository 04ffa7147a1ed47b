package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traffictacos/reservation-core/internal/apperr"
)

// BookingRepo is the durable repository for Booking rows.
type BookingRepo struct {
	pool *pgxpool.Pool
}

func NewBookingRepo(pool *pgxpool.Pool) *BookingRepo {
	return &BookingRepo{pool: pool}
}

// Create inserts a new PENDING booking and returns its generated ID.
func (r *BookingRepo) Create(ctx context.Context, b *Booking) (int64, error) {
	const query = `
		INSERT INTO bookings (user_id, event_id, seat_ids, amount_cents, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		b.UserID, b.EventID, b.SeatIDs, b.AmountCents, b.Status, b.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: insert booking: %w", err)
	}
	return id, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.UserID, &b.EventID, &b.SeatIDs, &b.AmountCents, &b.Status,
		&b.CreatedAt, &b.ConfirmedAt, &b.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan booking: %w", err)
	}
	return &b, nil
}

// FindByID returns a booking by its ID.
func (r *BookingRepo) FindByID(ctx context.Context, id int64) (*Booking, error) {
	const query = `
		SELECT id, user_id, event_id, seat_ids, amount_cents, status, created_at, confirmed_at, expires_at
		FROM bookings WHERE id = $1
	`
	return scanBooking(r.pool.QueryRow(ctx, query, id))
}

// FindByUser returns every booking created by userID, newest first.
func (r *BookingRepo) FindByUser(ctx context.Context, userID string) ([]*Booking, error) {
	const query = `
		SELECT id, user_id, event_id, seat_ids, amount_cents, status, created_at, confirmed_at, expires_at
		FROM bookings WHERE user_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("store: query bookings by user: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindExpiredPending returns every PENDING booking whose expiry has
// already passed, for the saga's expiry sweep.
func (r *BookingRepo) FindExpiredPending(ctx context.Context, now time.Time) ([]*Booking, error) {
	const query = `
		SELECT id, user_id, event_id, seat_ids, amount_cents, status, created_at, confirmed_at, expires_at
		FROM bookings WHERE status = $1 AND expires_at < $2
	`
	rows, err := r.pool.Query(ctx, query, BookingPending, now)
	if err != nil {
		return nil, fmt.Errorf("store: query expired bookings: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CompareAndSetStatus transitions a booking from 'from' to 'to' only if
// its current status still matches 'from'. This is the guard that keeps
// the expiry sweeper from racing a concurrent payment-result handler.
func (r *BookingRepo) CompareAndSetStatus(ctx context.Context, id int64, from, to BookingStatus) (bool, error) {
	const query = `UPDATE bookings SET status = $1 WHERE id = $2 AND status = $3`
	tag, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("store: compare-and-set booking status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Confirm transitions a booking to CONFIRMED and stamps confirmed_at,
// guarded by the same compare-and-set as CompareAndSetStatus.
func (r *BookingRepo) Confirm(ctx context.Context, id int64, from BookingStatus) (bool, error) {
	const query = `
		UPDATE bookings SET status = $1, confirmed_at = now()
		WHERE id = $2 AND status = $3
	`
	tag, err := r.pool.Exec(ctx, query, BookingConfirmed, id, from)
	if err != nil {
		return false, fmt.Errorf("store: confirm booking: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
