package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/traffictacos/reservation-core/internal/apperr"
	"github.com/traffictacos/reservation-core/internal/reservation"
)

// InventoryHandlers exposes the Lock Store / Reservation Engine
// operations over HTTP.
type InventoryHandlers struct {
	seatLocker *reservation.SeatLocker
	tatkal     *reservation.TatkalCounter
	lockTTL    time.Duration
}

func NewInventoryHandlers(seatLocker *reservation.SeatLocker, tatkal *reservation.TatkalCounter, lockTTL time.Duration) *InventoryHandlers {
	return &InventoryHandlers{seatLocker: seatLocker, tatkal: tatkal, lockTTL: lockTTL}
}

type lockRequest struct {
	EventID int64  `json:"eventId"`
	SeatID  string `json:"seatId"`
	OwnerID string `json:"ownerId"`
}

// Lock handles POST /inventory/lock
func (h *InventoryHandlers) Lock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.seatLocker.TryLock(r.Context(), req.EventID, req.SeatID, req.OwnerID, h.lockTTL); err != nil {
		if errors.Is(err, apperr.ErrSeatLocked) {
			owner, _, _ := h.seatLocker.Owner(r.Context(), req.EventID, req.SeatID)
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "seatId": req.SeatID, "owner": owner})
			return
		}
		handleError(w, err)
		return
	}
	ttl, _, _ := h.seatLocker.TTL(r.Context(), req.EventID, req.SeatID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "seatId": req.SeatID, "owner": req.OwnerID, "ttlSeconds": int(ttl.Seconds())})
}

type lockMultipleRequest struct {
	EventID int64    `json:"eventId"`
	SeatIDs []string `json:"seatIds"`
	OwnerID string   `json:"ownerId"`
}

// LockMultiple handles POST /inventory/lock-multiple
func (h *InventoryHandlers) LockMultiple(w http.ResponseWriter, r *http.Request) {
	var req lockMultipleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.seatLocker.TryLockMany(r.Context(), req.EventID, req.SeatIDs, req.OwnerID, h.lockTTL); err != nil {
		if errors.Is(err, apperr.ErrSeatLocked) {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "seatIds": req.SeatIDs})
			return
		}
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "seatIds": req.SeatIDs, "ttlSeconds": int(h.lockTTL.Seconds())})
}

type releaseRequest struct {
	EventID int64    `json:"eventId"`
	SeatIDs []string `json:"seatIds"`
	OwnerID string   `json:"ownerId"`
}

// Release handles POST /inventory/release
func (h *InventoryHandlers) Release(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.seatLocker.ReleaseMany(r.Context(), req.EventID, req.SeatIDs, req.OwnerID); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"released": true})
}

// Check handles GET /inventory/check/{eventId}/{seatId}
func (h *InventoryHandlers) Check(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID, err := strconv.ParseInt(vars["eventId"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "eventId must be an integer")
		return
	}
	locked, err := h.seatLocker.IsLocked(r.Context(), eventID, vars["seatId"])
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seatId": vars["seatId"], "locked": locked})
}

// Status handles GET /inventory/status/{eventId}
func (h *InventoryHandlers) Status(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID, err := strconv.ParseInt(vars["eventId"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "eventId must be an integer")
		return
	}
	locked, err := h.seatLocker.LockedSeatsForEvent(r.Context(), eventID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"eventId": eventID, "lockedSeats": locked})
}

type tatkalInitRequest struct {
	Count int64 `json:"count"`
}

// TatkalInit handles POST /inventory/tatkal/init/{eventId}
func (h *InventoryHandlers) TatkalInit(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "eventId must be an integer")
		return
	}
	var req tatkalInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.tatkal.Initialize(r.Context(), eventID, req.Count); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"eventId": eventID, "count": req.Count})
}

type tatkalReserveRequest struct {
	Quantity int64 `json:"quantity"`
}

// TatkalReserve handles POST /inventory/tatkal/reserve/{eventId}
func (h *InventoryHandlers) TatkalReserve(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "eventId must be an integer")
		return
	}
	var req tatkalReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.tatkal.TryReserve(r.Context(), eventID, req.Quantity); err != nil {
		if errors.Is(err, apperr.ErrInventorySoldOut) {
			remaining, _ := h.tatkal.Remaining(r.Context(), eventID)
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "quantity": req.Quantity, "remainingSeats": remaining})
			return
		}
		handleError(w, err)
		return
	}
	remaining, _ := h.tatkal.Remaining(r.Context(), eventID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "quantity": req.Quantity, "remainingSeats": remaining})
}

type tatkalReleaseRequest struct {
	Quantity int64 `json:"quantity"`
}

// TatkalRelease handles POST /inventory/tatkal/release/{eventId}
func (h *InventoryHandlers) TatkalRelease(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "eventId must be an integer")
		return
	}
	var req tatkalReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.tatkal.Release(r.Context(), eventID, req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"released": true, "quantity": req.Quantity})
}

func parseEventID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["eventId"], 10, 64)
}
