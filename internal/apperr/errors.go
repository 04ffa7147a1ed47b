// Package apperr defines the sentinel domain errors shared across the
// reservation, payment, and saga packages, plus the Kind classification
// that internal/httpapi maps to HTTP status codes.
package apperr

import "errors"

// Kind classifies a domain error for transport-layer mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindUnavailable
	KindTimeout
	KindForbidden
)

var (
	ErrSeatLocked        = errors.New("seat is already locked by another owner")
	ErrSeatNotLocked     = errors.New("seat is not currently locked")
	ErrLockOwnerMismatch = errors.New("lock is held by a different owner")
	ErrSeatsNotOwned     = errors.New("one or more seats are not owned by the requesting user")

	ErrInventoryNotFound  = errors.New("tatkal inventory not initialized for event")
	ErrInventorySoldOut   = errors.New("tatkal inventory is sold out")
	ErrInventoryNegative  = errors.New("tatkal inventory would go negative")

	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingExpired       = errors.New("booking reservation has expired")
	ErrBookingTerminal      = errors.New("booking is already in a terminal state")
	ErrInvalidTransition    = errors.New("invalid booking state transition")
	ErrBookingNotOwned      = errors.New("booking does not belong to the requesting user")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPaymentDeclined     = errors.New("payment was declined by the gateway")
	ErrGatewayTimeout      = errors.New("payment gateway timed out")

	ErrInvalidRequest = errors.New("invalid request")
)

// kinds maps each sentinel to its Kind. Looked up via errors.Is so
// wrapped errors still resolve correctly.
var kinds = map[error]Kind{
	ErrSeatLocked:          KindConflict,
	ErrSeatNotLocked:       KindNotFound,
	ErrLockOwnerMismatch:   KindConflict,
	ErrSeatsNotOwned:       KindInvalidInput,
	ErrInventoryNotFound:   KindNotFound,
	ErrInventorySoldOut:    KindConflict,
	ErrInventoryNegative:   KindConflict,
	ErrBookingNotFound:     KindNotFound,
	ErrBookingExpired:      KindConflict,
	ErrBookingTerminal:     KindConflict,
	ErrInvalidTransition:   KindConflict,
	ErrBookingNotOwned:     KindForbidden,
	ErrTransactionNotFound: KindNotFound,
	ErrPaymentDeclined:     KindConflict,
	ErrGatewayTimeout:      KindTimeout,
	ErrInvalidRequest:      KindInvalidInput,
}

// KindOf returns the Kind for err, walking the error chain. Unrecognized
// errors resolve to KindUnknown, which callers should treat as an
// internal error.
func KindOf(err error) Kind {
	for sentinel, k := range kinds {
		if errors.Is(err, sentinel) {
			return k
		}
	}
	return KindUnknown
}
