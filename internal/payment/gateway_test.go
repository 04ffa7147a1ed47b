package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffictacos/reservation-core/internal/payment"
)

func TestStochasticGateway_AlwaysSucceedsAtZeroFailureRate(t *testing.T) {
	gw := payment.NewStochasticGateway(0)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	result, err := gw.Charge(ctx, "txn-1", 1000, "USD")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.GatewayReference)
}

func TestStochasticGateway_AlwaysFailsAtFullFailureRate(t *testing.T) {
	gw := payment.NewStochasticGateway(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	result, err := gw.Charge(ctx, "txn-1", 1000, "USD")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.FailureReason)
}

func TestStochasticGateway_RespectsContextDeadline(t *testing.T) {
	gw := payment.NewStochasticGateway(0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := gw.Charge(ctx, "txn-1", 1000, "USD")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStochasticGateway_LookupIsDeterministicPerTransaction(t *testing.T) {
	gw := payment.NewStochasticGateway(0.5)

	first, err := gw.Lookup(context.Background(), "txn-stale-1")
	require.NoError(t, err)
	second, err := gw.Lookup(context.Background(), "txn-stale-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStochasticGateway_LookupAlwaysSucceedsAtZeroFailureRate(t *testing.T) {
	gw := payment.NewStochasticGateway(0)
	result, err := gw.Lookup(context.Background(), "txn-2")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.GatewayReference)
}
