package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"trading-platform/authcore/internal/autherr"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServiceError maps domain errors onto HTTP statuses. Unknown errors
// become 500 with a generic body so internals never leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, autherr.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, autherr.ErrMFARequired):
		writeError(w, http.StatusUnauthorized, "mfa required")
	case errors.Is(err, autherr.ErrMFAInvalid):
		writeError(w, http.StatusUnauthorized, "invalid code")
	case errors.Is(err, autherr.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many attempts")
	case errors.Is(err, autherr.ErrExpired):
		writeError(w, http.StatusUnauthorized, "expired")
	case errors.Is(err, autherr.ErrReuseDetected):
		writeError(w, http.StatusUnauthorized, "token reuse detected")
	case errors.Is(err, autherr.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, autherr.ErrKeyUnavailable), errors.Is(err, autherr.ErrDependencyUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
