package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/traffictacos/reservation-core/internal/store"
)

// NewRouter builds the full HTTP surface: inventory, booking, and
// payment resources plus /healthz.
func NewRouter(inv *InventoryHandlers, bookings *BookingHandlers, payments *PaymentHandlers, pgPool *pgxpool.Pool, redisClient *redis.Client, requestDeadline time.Duration) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", healthHandler(pgPool, redisClient)).Methods(http.MethodGet)

	router.HandleFunc("/inventory/lock", inv.Lock).Methods(http.MethodPost)
	router.HandleFunc("/inventory/lock-multiple", inv.LockMultiple).Methods(http.MethodPost)
	router.HandleFunc("/inventory/release", inv.Release).Methods(http.MethodPost)
	router.HandleFunc("/inventory/check/{eventId}/{seatId}", inv.Check).Methods(http.MethodGet)
	router.HandleFunc("/inventory/status/{eventId}", inv.Status).Methods(http.MethodGet)
	router.HandleFunc("/inventory/tatkal/init/{eventId}", inv.TatkalInit).Methods(http.MethodPost)
	router.HandleFunc("/inventory/tatkal/reserve/{eventId}", inv.TatkalReserve).Methods(http.MethodPost)
	router.HandleFunc("/inventory/tatkal/release/{eventId}", inv.TatkalRelease).Methods(http.MethodPost)

	router.HandleFunc("/bookings", bookings.Create).Methods(http.MethodPost)
	router.HandleFunc("/bookings/{id}", bookings.Get).Methods(http.MethodGet)
	router.HandleFunc("/bookings/user/{userId}", bookings.GetByUser).Methods(http.MethodGet)
	router.HandleFunc("/bookings/{id}", bookings.Cancel).Methods(http.MethodDelete)

	router.HandleFunc("/payments/{transactionId}", payments.Get).Methods(http.MethodGet)

	var handler http.Handler = router
	handler = Deadline(requestDeadline)(handler)
	handler = RequestLogger(handler)
	handler = Recoverer(handler)
	return handler
}

type healthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Services: make(map[string]string)}

		if err := store.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
