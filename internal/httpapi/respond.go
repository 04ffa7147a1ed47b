package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/traffictacos/reservation-core/internal/apperr"
)

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// handleError maps a domain error to the appropriate HTTP status code
// and error envelope.
func handleError(w http.ResponseWriter, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case apperr.KindConflict:
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case apperr.KindInvalidInput:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case apperr.KindForbidden:
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case apperr.KindTimeout:
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case apperr.KindUnavailable:
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}
