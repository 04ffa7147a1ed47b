package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/traffictacos/reservation-core/internal/apperr"
	"github.com/traffictacos/reservation-core/internal/saga"
	"github.com/traffictacos/reservation-core/internal/store"
)

// BookingHandlers exposes the Booking Saga over HTTP.
type BookingHandlers struct {
	saga     *saga.Saga
	bookings *store.BookingRepo
}

func NewBookingHandlers(s *saga.Saga, bookings *store.BookingRepo) *BookingHandlers {
	return &BookingHandlers{saga: s, bookings: bookings}
}

type createBookingRequest struct {
	UserID      string   `json:"userId"`
	EventID     int64    `json:"eventId"`
	SeatIDs     []string `json:"seatIds"`
	AmountCents int64    `json:"amountCents"`
	Currency    string   `json:"currency"`
}

// Create handles POST /bookings
func (h *BookingHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.UserID == "" || len(req.SeatIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "userId and seatIds are required")
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	b, err := h.saga.CreateBooking(r.Context(), req.UserID, req.EventID, req.SeatIDs, req.AmountCents, req.Currency)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingToJSON(b))
}

// Get handles GET /bookings/{id}?userId=…. The caller must supply the
// userId it booked under; a booking belonging to a different user is
// never returned, even if the id is guessed correctly.
func (h *BookingHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "id must be an integer")
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "userId query parameter is required")
		return
	}
	b, err := h.bookings.FindByID(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	if b.UserID != userID {
		handleError(w, apperr.ErrBookingNotOwned)
		return
	}
	writeJSON(w, http.StatusOK, bookingToJSON(b))
}

// GetByUser handles GET /bookings/user/{userId}
func (h *BookingHandlers) GetByUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	bookings, err := h.bookings.FindByUser(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	out := make([]any, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingToJSON(b))
	}
	writeJSON(w, http.StatusOK, out)
}

// Cancel handles DELETE /bookings/{id}?userId=…. Requires the owning
// userId and rejects cancellation of an already-CONFIRMED booking; a
// sold seat cannot be unwound through this path.
func (h *BookingHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "id must be an integer")
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "userId query parameter is required")
		return
	}
	if err := h.saga.Cancel(r.Context(), id, userID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bookingToJSON(b *store.Booking) map[string]any {
	return map[string]any{
		"id":          b.ID,
		"userId":      b.UserID,
		"eventId":     b.EventID,
		"seatIds":     b.SeatIDs,
		"amountCents": b.AmountCents,
		"status":      b.Status,
		"createdAt":   b.CreatedAt,
		"confirmedAt": b.ConfirmedAt,
		"expiresAt":   b.ExpiresAt,
	}
}
