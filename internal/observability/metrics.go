// Package observability wires Prometheus metrics and OpenTelemetry
// tracing for the reservation core, using promauto registration and an
// OTLP gRPC exporter.
package observability

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/histogram/gauge this service records.
type Metrics struct {
	LockAttempts       *prometheus.CounterVec
	LockLatency        *prometheus.HistogramVec
	TatkalReservations *prometheus.CounterVec
	TatkalRemaining    *prometheus.GaugeVec
	PaymentAttempts    *prometheus.CounterVec
	PaymentLatency     prometheus.Histogram
	SagaTransitions    *prometheus.CounterVec
	BusPublishes       *prometheus.CounterVec
	BusConsumes        *prometheus.CounterVec
	BusDeadLettered    *prometheus.CounterVec
}

// NewMetrics registers every metric against the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		LockAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_lock_attempts_total",
			Help: "Seat lock attempts by outcome (acquired, conflict, error).",
		}, []string{"outcome"}),
		LockLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reservation_lock_latency_seconds",
			Help:    "Latency of seat lock operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		TatkalReservations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_tatkal_reservations_total",
			Help: "Tatkal reservation attempts by outcome (reserved, sold_out, error).",
		}, []string{"outcome"}),
		TatkalRemaining: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reservation_tatkal_remaining",
			Help: "Last observed remaining Tatkal inventory per event.",
		}, []string{"event_id"}),
		PaymentAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_payment_attempts_total",
			Help: "Payment attempts by outcome (success, declined, timeout, error).",
		}, []string{"outcome"}),
		PaymentLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "reservation_payment_latency_seconds",
			Help:    "Latency of gateway charge calls.",
			Buckets: prometheus.DefBuckets,
		}),
		SagaTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_saga_transitions_total",
			Help: "Booking saga transitions by target state.",
		}, []string{"to_status"}),
		BusPublishes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_bus_publishes_total",
			Help: "Event bus publishes by topic and outcome.",
		}, []string{"topic", "outcome"}),
		BusConsumes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_bus_consumes_total",
			Help: "Event bus deliveries handled by topic and outcome.",
		}, []string{"topic", "outcome"}),
		BusDeadLettered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_bus_dead_lettered_total",
			Help: "Messages routed to a dead-letter queue, by topic.",
		}, []string{"topic"}),
	}
}

// RecordLockAttempt records the outcome and latency of a lock operation.
func (m *Metrics) RecordLockAttempt(operation, outcome string, d time.Duration) {
	m.LockAttempts.WithLabelValues(outcome).Inc()
	m.LockLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordTatkalReservation records a Tatkal reservation outcome.
func (m *Metrics) RecordTatkalReservation(outcome string) {
	m.TatkalReservations.WithLabelValues(outcome).Inc()
}

// SetTatkalRemaining records the last-observed remaining count.
func (m *Metrics) SetTatkalRemaining(eventID string, remaining float64) {
	m.TatkalRemaining.WithLabelValues(eventID).Set(remaining)
}

// RecordPayment records a payment attempt outcome and latency.
func (m *Metrics) RecordPayment(outcome string, d time.Duration) {
	m.PaymentAttempts.WithLabelValues(outcome).Inc()
	m.PaymentLatency.Observe(d.Seconds())
}

// RecordSagaTransition records a booking transitioning to toStatus.
func (m *Metrics) RecordSagaTransition(toStatus string) {
	m.SagaTransitions.WithLabelValues(toStatus).Inc()
}

// RecordPublish records an event bus publish outcome.
func (m *Metrics) RecordPublish(topic, outcome string) {
	m.BusPublishes.WithLabelValues(topic, outcome).Inc()
}

// RecordConsume records an event bus delivery outcome.
func (m *Metrics) RecordConsume(topic, outcome string) {
	m.BusConsumes.WithLabelValues(topic, outcome).Inc()
}

// RecordDeadLettered records a message routed to a DLQ.
func (m *Metrics) RecordDeadLettered(topic string) {
	m.BusDeadLettered.WithLabelValues(topic).Inc()
}

// StartMetricsServer starts a dedicated HTTP server exposing /metrics.
// It runs until ctx is cancelled.
func StartMetricsServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addrFor(port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("metrics server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("metrics server error: %v", err)
	}
}

func addrFor(port int) string {
	return fmt.Sprintf(":%d", port)
}
