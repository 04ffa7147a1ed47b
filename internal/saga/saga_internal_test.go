package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traffictacos/reservation-core/internal/store"
)

func TestCanTransition_FromPending(t *testing.T) {
	for _, to := range []store.BookingStatus{
		store.BookingConfirmed,
		store.BookingFailed,
		store.BookingCancelled,
		store.BookingExpired,
	} {
		assert.True(t, canTransition(store.BookingPending, to), "PENDING -> %s must be allowed", to)
	}
}

func TestCanTransition_TerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	for _, from := range []store.BookingStatus{
		store.BookingConfirmed,
		store.BookingFailed,
		store.BookingCancelled,
		store.BookingExpired,
	} {
		assert.False(t, canTransition(from, store.BookingConfirmed), "%s must be terminal", from)
		assert.False(t, canTransition(from, store.BookingPending), "%s must be terminal", from)
	}
}

func TestCanTransition_RejectsUnknownTarget(t *testing.T) {
	assert.False(t, canTransition(store.BookingPending, store.BookingStatus("BOGUS")))
}
