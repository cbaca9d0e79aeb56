package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tourguard/safety-band/internal/engine"
	"github.com/tourguard/safety-band/internal/incident"
	"github.com/tourguard/safety-band/internal/logger"
	"github.com/tourguard/safety-band/internal/registry"
)

// errorResponse is the JSON body for every failed request.
type errorResponse struct {
	// Error is a human-readable failure description.
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	//nolint:errcheck // The status line is already written, nothing left to do.
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	if status >= http.StatusInternalServerError {
		logger.ErrorKV(r.Context(), "Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}

	respondJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain error sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrUnknownBand),
		errors.Is(err, registry.ErrUnknownTourist):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrStaleEvent),
		errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, incident.ErrStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode request body: %v", registry.ErrValidation, err)
	}

	return nil
}
