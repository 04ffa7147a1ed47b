package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/traffictacos/reservation-core/internal/store"
)

// PaymentHandlers exposes read access to Transaction records over HTTP.
// Payments themselves are only ever initiated from the booking.created
// consumer in cmd/worker, never directly from an HTTP request, so this
// surface is read-only.
type PaymentHandlers struct {
	transactions *store.TransactionRepo
}

func NewPaymentHandlers(transactions *store.TransactionRepo) *PaymentHandlers {
	return &PaymentHandlers{transactions: transactions}
}

// Get handles GET /payments/{transactionId}
func (h *PaymentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["transactionId"]
	txn, err := h.transactions.FindByID(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":               txn.ID,
		"bookingId":        txn.BookingID,
		"userId":           txn.UserID,
		"amountCents":      txn.AmountCents,
		"currency":         txn.Currency,
		"status":           txn.Status,
		"gatewayReference": txn.GatewayReference,
		"failureReason":    txn.FailureReason,
		"createdAt":        txn.CreatedAt,
		"updatedAt":        txn.UpdatedAt,
	})
}
