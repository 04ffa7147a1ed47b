package payment

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"
)

// Result is what a GatewayAdapter returns for a single charge attempt.
type Result struct {
	Success          bool
	GatewayReference string
	FailureReason    string
}

// GatewayAdapter abstracts the external payment gateway so the engine
// can be tested without a live one.
type GatewayAdapter interface {
	Charge(ctx context.Context, transactionID string, amountCents int64, currency string) (Result, error)

	// Lookup queries the gateway for the final state of a previously
	// initiated charge, used to resolve a transaction left PENDING by a
	// GATEWAY_TIMEOUT without re-charging it.
	Lookup(ctx context.Context, transactionID string) (Result, error)
}

var failureReasons = []string{
	"card_declined",
	"insufficient_funds",
	"gateway_timeout",
	"issuer_unavailable",
}

// StochasticGateway simulates a real payment gateway: a configurable
// failure rate and a 1-2s processing delay, mirroring the shape of
// production latency without calling out to anything external.
type StochasticGateway struct {
	FailureRate float64
}

func NewStochasticGateway(failureRate float64) *StochasticGateway {
	return &StochasticGateway{FailureRate: failureRate}
}

func (g *StochasticGateway) Charge(ctx context.Context, transactionID string, amountCents int64, currency string) (Result, error) {
	delay := time.Duration(1000+rand.Intn(1000)) * time.Millisecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	if rand.Float64() < g.FailureRate {
		reason := failureReasons[rand.Intn(len(failureReasons))]
		return Result{Success: false, FailureReason: reason}, nil
	}

	return Result{Success: true, GatewayReference: "gw_" + transactionID}, nil
}

// Lookup simulates querying the gateway for a charge's final state. The
// outcome is deterministic per transactionID (hashed rather than rolled
// fresh) so repeated sweeps of the same stale transaction agree.
func (g *StochasticGateway) Lookup(ctx context.Context, transactionID string) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(transactionID))
	roll := float64(h.Sum32()%10000) / 10000

	if roll < g.FailureRate {
		reason := failureReasons[h.Sum32()%uint32(len(failureReasons))]
		return Result{Success: false, FailureReason: reason}, nil
	}
	return Result{Success: true, GatewayReference: "gw_" + transactionID}, nil
}
