package eventbus

import "time"

// Topic names, fixed by the system's event contract.
const (
	TopicBookingCreated   = "booking.created"
	TopicPaymentSuccess   = "payment.success"
	TopicPaymentFailed    = "payment.failed"
	TopicBookingConfirmed = "booking.confirmed"
)

// BookingCreated is published once a booking has been durably recorded
// in PENDING state and is ready for payment processing.
type BookingCreated struct {
	BookingID   int64     `json:"bookingId"`
	UserID      string    `json:"userId"`
	EventID     int64     `json:"eventId"`
	SeatIDs     []string  `json:"seatIds"`
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PaymentSuccess is published once the payment engine has confirmed a
// successful charge for a booking.
type PaymentSuccess struct {
	BookingID        int64     `json:"bookingId"`
	TransactionID     string    `json:"transactionId"`
	UserID            string    `json:"userId"`
	AmountCents       int64     `json:"amountCents"`
	GatewayReference  string    `json:"gatewayReference"`
	SucceededAt       time.Time `json:"succeededAt"`
}

// PaymentFailed is published when the gateway declines or errors a
// charge for a booking.
type PaymentFailed struct {
	BookingID     int64     `json:"bookingId"`
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	FailureReason string    `json:"failureReason"`
	FailedAt      time.Time `json:"failedAt"`
}

// BookingConfirmed is published once the saga has moved a booking to
// its terminal CONFIRMED state.
type BookingConfirmed struct {
	BookingID   int64     `json:"bookingId"`
	UserID      string    `json:"userId"`
	EventID     int64     `json:"eventId"`
	SeatIDs     []string  `json:"seatIds"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}
