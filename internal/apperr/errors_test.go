package apperr_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traffictacos/reservation-core/internal/apperr"
)

func TestKindOf_DirectSentinels(t *testing.T) {
	cases := map[error]apperr.Kind{
		apperr.ErrSeatLocked:         apperr.KindConflict,
		apperr.ErrSeatNotLocked:      apperr.KindNotFound,
		apperr.ErrLockOwnerMismatch:  apperr.KindConflict,
		apperr.ErrInventoryNotFound:  apperr.KindNotFound,
		apperr.ErrInventorySoldOut:   apperr.KindConflict,
		apperr.ErrBookingNotFound:    apperr.KindNotFound,
		apperr.ErrBookingTerminal:    apperr.KindConflict,
		apperr.ErrBookingNotOwned:    apperr.KindForbidden,
		apperr.ErrSeatsNotOwned:      apperr.KindInvalidInput,
		apperr.ErrGatewayTimeout:     apperr.KindTimeout,
		apperr.ErrInvalidRequest:     apperr.KindInvalidInput,
	}
	for err, want := range cases {
		assert.Equal(t, want, apperr.KindOf(err), "for %v", err)
	}
}

func TestKindOf_WrappedError(t *testing.T) {
	wrapped := fmt.Errorf("reservation: try lock seat A1: %w", apperr.ErrSeatLocked)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(wrapped))
}

func TestKindOf_UnknownError(t *testing.T) {
	assert.Equal(t, apperr.KindUnknown, apperr.KindOf(fmt.Errorf("some unrelated failure")))
}
