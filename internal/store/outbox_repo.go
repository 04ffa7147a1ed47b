package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepo persists events awaiting publication. Once a row is
// committed, a crash before "publish the event" cannot lose it — it is
// simply picked up by the next drain. internal/payment.Engine enqueues
// its outcome event in the same database transaction as the
// transaction status update. internal/saga.Saga enqueues its events in
// a transaction of their own, committed after the booking row change,
// so a crash between those two commits leaves the booking change
// without its event.
type OutboxRepo struct {
	pool *pgxpool.Pool
}

func NewOutboxRepo(pool *pgxpool.Pool) *OutboxRepo {
	return &OutboxRepo{pool: pool}
}

// Enqueue writes an outbox row using tx, the same transaction the
// caller is about to commit its domain change in.
func (r *OutboxRepo) Enqueue(ctx context.Context, tx pgx.Tx, topic, partitionKey string, payload []byte) error {
	const query = `
		INSERT INTO outbox_events (topic, partition_key, payload)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.Exec(ctx, query, topic, partitionKey, payload); err != nil {
		return fmt.Errorf("store: enqueue outbox event: %w", err)
	}
	return nil
}

// FetchUnpublished returns up to limit outbox rows awaiting publication,
// oldest first.
func (r *OutboxRepo) FetchUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	const query = `
		SELECT id, topic, partition_key, payload, published_at, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: fetch unpublished outbox events: %w", err)
	}
	defer rows.Close()

	var out []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.Topic, &e.PartitionKey, &e.Payload, &e.PublishedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan outbox event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MarkPublished stamps published_at for a successfully-published event.
func (r *OutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	const query = `UPDATE outbox_events SET published_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("store: mark outbox event published: %w", err)
	}
	return nil
}

// WithTx runs fn inside a database transaction, committing on success
// and rolling back on error or panic.
func (r *OutboxRepo) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}
