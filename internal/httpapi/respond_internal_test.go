package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traffictacos/reservation-core/internal/apperr"
)

func TestHandleError_MapsDomainErrorsToStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{apperr.ErrBookingNotFound, 404},
		{apperr.ErrSeatLocked, 409},
		{apperr.ErrInvalidRequest, 400},
		{apperr.ErrSeatsNotOwned, 400},
		{apperr.ErrBookingNotOwned, 403},
		{apperr.ErrGatewayTimeout, 504},
		{assertUnknownErr{}, 500},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handleError(rec, tc.err)
		assert.Equal(t, tc.code, rec.Code, "for %v", tc.err)
	}
}

type assertUnknownErr struct{}

func (assertUnknownErr) Error() string { return "unrecognized" }
