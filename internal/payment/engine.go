// Package payment implements idempotent charge processing: the same
// booking/user pair always resolves to exactly one Transaction row no
// matter how many times the request is retried.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/traffictacos/reservation-core/internal/eventbus"
	"github.com/traffictacos/reservation-core/internal/store"
)

// Recorder receives payment outcome metrics. *observability.Metrics
// satisfies this implicitly.
type Recorder interface {
	RecordPayment(outcome string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordPayment(string, time.Duration) {}

// Engine processes payments against a GatewayAdapter, persisting every
// attempt durably and publishing its outcome through the outbox.
type Engine struct {
	transactions *store.TransactionRepo
	outbox       *store.OutboxRepo
	gateway      GatewayAdapter
	metrics      Recorder
}

func NewEngine(transactions *store.TransactionRepo, outbox *store.OutboxRepo, gateway GatewayAdapter) *Engine {
	return &Engine{transactions: transactions, outbox: outbox, gateway: gateway, metrics: noopRecorder{}}
}

// WithMetrics attaches a Recorder that observes every charge outcome.
func (e *Engine) WithMetrics(m Recorder) *Engine {
	e.metrics = m
	return e
}

func outcomeOf(txn *store.Transaction) string {
	switch txn.Status {
	case store.TransactionSuccess:
		return "success"
	case store.TransactionFailed:
		if txn.FailureReason == "gateway_timeout" {
			return "timeout"
		}
		return "declined"
	case store.TransactionPending:
		if txn.FailureReason == "gateway_timeout" {
			return "timeout"
		}
		return "pending"
	default:
		return "error"
	}
}

// IdempotencyKey computes the deterministic key for a booking/user pair,
// exactly as specified: booking_{bookingId}_user_{userId}.
func IdempotencyKey(bookingID int64, userID string) string {
	return fmt.Sprintf("booking_%d_user_%s", bookingID, userID)
}

// Process charges amountCents for bookingID/userID. If a transaction
// already exists for this idempotency key — including one created by a
// concurrent racing request — its existing outcome is returned instead
// of charging the gateway a second time.
func (e *Engine) Process(ctx context.Context, bookingID int64, userID string, amountCents int64, currency string) (*store.Transaction, error) {
	key := IdempotencyKey(bookingID, userID)

	existing, err := e.transactions.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("payment: lookup existing transaction: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	txn := &store.Transaction{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		BookingID:      bookingID,
		UserID:         userID,
		AmountCents:    amountCents,
		Currency:       currency,
	}

	if err := e.transactions.InsertPending(ctx, txn); err != nil {
		// Someone else won the race to insert this idempotency key;
		// defer to their row rather than erroring out.
		winner, ferr := e.transactions.FindByIdempotencyKey(ctx, key)
		if ferr == nil && winner != nil {
			return winner, nil
		}
		return nil, fmt.Errorf("payment: insert pending transaction: %w", err)
	}

	chargeStart := time.Now()
	result, gerr := e.gateway.Charge(ctx, txn.ID, amountCents, currency)
	defer func() { e.metrics.RecordPayment(outcomeOf(txn), time.Since(chargeStart)) }()
	if gerr != nil {
		if errors.Is(gerr, context.DeadlineExceeded) {
			// The gateway may have actually completed the charge after
			// our deadline fired; leave the transaction PENDING for the
			// sweeper to resolve via a gateway lookup rather than
			// guessing FAILED and risking a charge that succeeded.
			txn.Status = store.TransactionPending
			txn.FailureReason = "gateway_timeout"
			return txn, nil
		}
		return nil, fmt.Errorf("payment: gateway charge: %w", gerr)
	}

	if result.Success {
		txn.Status = store.TransactionSuccess
		txn.GatewayReference = result.GatewayReference
	} else {
		txn.Status = store.TransactionFailed
		txn.FailureReason = result.FailureReason
	}

	if err := e.recordOutcome(ctx, txn); err != nil {
		return nil, fmt.Errorf("payment: record outcome: %w", err)
	}

	return txn, nil
}

// Sweep resolves transactions left PENDING by a GATEWAY_TIMEOUT at least
// olderThan ago, querying the gateway for their true final state instead
// of re-charging. It returns the number of transactions resolved.
func (e *Engine) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := e.transactions.FindStalePending(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("payment: find stale pending transactions: %w", err)
	}

	resolved := 0
	for _, txn := range stale {
		result, err := e.gateway.Lookup(ctx, txn.ID)
		if err != nil {
			continue
		}
		if result.Success {
			txn.Status = store.TransactionSuccess
			txn.GatewayReference = result.GatewayReference
		} else {
			txn.Status = store.TransactionFailed
			txn.FailureReason = result.FailureReason
		}
		if err := e.recordOutcome(ctx, txn); err != nil {
			continue
		}
		resolved++
	}
	return resolved, nil
}

// recordOutcome updates the transaction's terminal status and enqueues
// its outcome event in the same database transaction, so the two can
// never diverge even if the process crashes between them.
func (e *Engine) recordOutcome(ctx context.Context, txn *store.Transaction) error {
	now := time.Now().UTC()
	partitionKey := fmt.Sprintf("%d", txn.BookingID)

	var topic string
	var payload []byte
	var err error

	if txn.Status == store.TransactionSuccess {
		topic = eventbus.TopicPaymentSuccess
		payload, err = json.Marshal(eventbus.PaymentSuccess{
			BookingID:        txn.BookingID,
			TransactionID:    txn.ID,
			UserID:           txn.UserID,
			AmountCents:      txn.AmountCents,
			GatewayReference: txn.GatewayReference,
			SucceededAt:      now,
		})
	} else {
		topic = eventbus.TopicPaymentFailed
		payload, err = json.Marshal(eventbus.PaymentFailed{
			BookingID:     txn.BookingID,
			TransactionID: txn.ID,
			UserID:        txn.UserID,
			FailureReason: txn.FailureReason,
			FailedAt:      now,
		})
	}
	if err != nil {
		return fmt.Errorf("marshal payment outcome event: %w", err)
	}

	return e.outbox.WithTx(ctx, func(tx pgx.Tx) error {
		if txn.Status == store.TransactionSuccess {
			if err := e.transactions.MarkSuccessTx(ctx, tx, txn.ID, txn.GatewayReference); err != nil {
				return err
			}
		} else {
			if err := e.transactions.MarkFailedTx(ctx, tx, txn.ID, txn.FailureReason); err != nil {
				return err
			}
		}
		return e.outbox.Enqueue(ctx, tx, topic, partitionKey, payload)
	})
}
