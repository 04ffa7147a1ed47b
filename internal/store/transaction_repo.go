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

// TransactionRepo is the durable repository for Transaction rows, keyed
// by a unique idempotency_key so concurrent retries of the same
// logical charge collapse onto a single row.
type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var gatewayReference, failureReason *string
	err := row.Scan(
		&t.ID, &t.IdempotencyKey, &t.BookingID, &t.UserID, &t.AmountCents,
		&t.Currency, &t.Status, &gatewayReference, &failureReason,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan transaction: %w", err)
	}
	if gatewayReference != nil {
		t.GatewayReference = *gatewayReference
	}
	if failureReason != nil {
		t.FailureReason = *failureReason
	}
	return &t, nil
}

// FindByIdempotencyKey returns the transaction for key, if one exists.
// Returns (nil, nil) when absent — the caller decides whether that means
// "create one" or "not found".
func (r *TransactionRepo) FindByIdempotencyKey(ctx context.Context, key string) (*Transaction, error) {
	const query = `
		SELECT id, idempotency_key, booking_id, user_id, amount_cents, currency,
		       status, gateway_reference, failure_reason, created_at, updated_at
		FROM transactions WHERE idempotency_key = $1
	`
	t, err := scanTransaction(r.pool.QueryRow(ctx, query, key))
	if errors.Is(err, apperr.ErrTransactionNotFound) {
		return nil, nil
	}
	return t, err
}

// FindByID returns a transaction by its primary key.
func (r *TransactionRepo) FindByID(ctx context.Context, id string) (*Transaction, error) {
	const query = `
		SELECT id, idempotency_key, booking_id, user_id, amount_cents, currency,
		       status, gateway_reference, failure_reason, created_at, updated_at
		FROM transactions WHERE id = $1
	`
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// InsertPending inserts a new PENDING transaction. Callers rely on the
// idempotency_key unique constraint: a concurrent insert racing on the
// same key fails here and the caller falls back to
// FindByIdempotencyKey to pick up the winner's row.
func (r *TransactionRepo) InsertPending(ctx context.Context, t *Transaction) error {
	const query = `
		INSERT INTO transactions (id, idempotency_key, booking_id, user_id, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		t.ID, t.IdempotencyKey, t.BookingID, t.UserID, t.AmountCents, t.Currency, TransactionPending,
	)
	if err != nil {
		return fmt.Errorf("store: insert pending transaction: %w", err)
	}
	return nil
}

// FindStalePending returns every transaction still PENDING whose
// created_at predates cutoff, for the payment sweeper to resolve via a
// gateway lookup rather than leaving a GATEWAY_TIMEOUT stuck forever.
func (r *TransactionRepo) FindStalePending(ctx context.Context, cutoff time.Time) ([]*Transaction, error) {
	const query = `
		SELECT id, idempotency_key, booking_id, user_id, amount_cents, currency,
		       status, gateway_reference, failure_reason, created_at, updated_at
		FROM transactions WHERE status = $1 AND created_at < $2
	`
	rows, err := r.pool.Query(ctx, query, TransactionPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: query stale pending transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkSuccess records a successful gateway charge.
func (r *TransactionRepo) MarkSuccess(ctx context.Context, id, gatewayReference string) error {
	const query = `
		UPDATE transactions
		SET status = $1, gateway_reference = $2, updated_at = now()
		WHERE id = $3
	`
	tag, err := r.pool.Exec(ctx, query, TransactionSuccess, gatewayReference, id)
	if err != nil {
		return fmt.Errorf("store: mark transaction success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrTransactionNotFound
	}
	return nil
}

// MarkFailed records a declined or errored gateway charge.
func (r *TransactionRepo) MarkFailed(ctx context.Context, id, reason string) error {
	const query = `
		UPDATE transactions
		SET status = $1, failure_reason = $2, updated_at = now()
		WHERE id = $3
	`
	tag, err := r.pool.Exec(ctx, query, TransactionFailed, reason, id)
	if err != nil {
		return fmt.Errorf("store: mark transaction failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrTransactionNotFound
	}
	return nil
}

// MarkSuccessTx is MarkSuccess run against an existing transaction tx,
// so the status update and the outbox event it produces commit atomically.
func (r *TransactionRepo) MarkSuccessTx(ctx context.Context, tx pgx.Tx, id, gatewayReference string) error {
	const query = `
		UPDATE transactions
		SET status = $1, gateway_reference = $2, updated_at = now()
		WHERE id = $3
	`
	_, err := tx.Exec(ctx, query, TransactionSuccess, gatewayReference, id)
	if err != nil {
		return fmt.Errorf("store: mark transaction success (tx): %w", err)
	}
	return nil
}

// MarkFailedTx is MarkFailed run against an existing transaction tx, so
// the status update and the outbox event it produces commit atomically.
func (r *TransactionRepo) MarkFailedTx(ctx context.Context, tx pgx.Tx, id, reason string) error {
	const query = `
		UPDATE transactions
		SET status = $1, failure_reason = $2, updated_at = now()
		WHERE id = $3
	`
	_, err := tx.Exec(ctx, query, TransactionFailed, reason, id)
	if err != nil {
		return fmt.Errorf("store: mark transaction failed (tx): %w", err)
	}
	return nil
}
