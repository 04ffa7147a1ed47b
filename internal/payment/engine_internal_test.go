package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traffictacos/reservation-core/internal/store"
)

func TestIdempotencyKey_DeterministicFormat(t *testing.T) {
	assert.Equal(t, "booking_42_user_u1", IdempotencyKey(42, "u1"))
	assert.Equal(t, IdempotencyKey(42, "u1"), IdempotencyKey(42, "u1"))
}

func TestOutcomeOf(t *testing.T) {
	cases := []struct {
		name string
		txn  *store.Transaction
		want string
	}{
		{"success", &store.Transaction{Status: store.TransactionSuccess}, "success"},
		{"timeout", &store.Transaction{Status: store.TransactionFailed, FailureReason: "gateway_timeout"}, "timeout"},
		{"declined", &store.Transaction{Status: store.TransactionFailed, FailureReason: "card_declined"}, "declined"},
		{"pending after gateway timeout", &store.Transaction{Status: store.TransactionPending, FailureReason: "gateway_timeout"}, "timeout"},
		{"pending with no outcome yet", &store.Transaction{Status: store.TransactionPending}, "pending"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, outcomeOf(tc.txn))
		})
	}
}
