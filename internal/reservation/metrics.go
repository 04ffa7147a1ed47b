package reservation

import "time"

// Recorder receives reservation-engine metrics. *observability.Metrics
// satisfies this implicitly.
type Recorder interface {
	RecordLockAttempt(operation, outcome string, d time.Duration)
	RecordTatkalReservation(outcome string)
	SetTatkalRemaining(eventID string, remaining float64)
}

type noopRecorder struct{}

func (noopRecorder) RecordLockAttempt(string, string, time.Duration) {}
func (noopRecorder) RecordTatkalReservation(string)                  {}
func (noopRecorder) SetTatkalRemaining(string, float64)               {}
