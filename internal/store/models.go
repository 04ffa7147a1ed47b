package store

import "time"

// BookingStatus is the saga state of a Booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingFailed    BookingStatus = "FAILED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingExpired   BookingStatus = "EXPIRED"
)

// Booking is the durable record of a seat reservation in progress.
type Booking struct {
	ID          int64
	UserID      string
	EventID     int64
	SeatIDs     []string
	AmountCents int64
	Status      BookingStatus
	CreatedAt   time.Time
	ConfirmedAt *time.Time
	ExpiresAt   time.Time
}

// TransactionStatus is the lifecycle state of a payment Transaction.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "PENDING"
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

// Transaction is the durable, idempotency-keyed record of a single
// payment attempt for a booking.
type Transaction struct {
	ID               string
	IdempotencyKey   string
	BookingID        int64
	UserID           string
	AmountCents      int64
	Currency         string
	Status           TransactionStatus
	GatewayReference string
	FailureReason    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OutboxEvent is a durable record of an event awaiting publication to
// the event bus. Payment outcome events are written in the same
// database transaction as the transaction row they accompany; booking
// events are written in a separate transaction after the booking row
// change commits (see OutboxRepo).
type OutboxEvent struct {
	ID           int64
	Topic        string
	PartitionKey string
	Payload      []byte
	PublishedAt  *time.Time
	CreatedAt    time.Time
}
