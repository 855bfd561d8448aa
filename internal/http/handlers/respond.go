// Package handlers exposes the booking engine over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/echannel-booking/internal/appointments"
	"github.com/wolfman30/echannel-booking/internal/database"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

const retryAfterSeconds = "1"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func badRequest(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "validation_error", Field: field})
}

// errorStatus maps a service error to its HTTP status and machine code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, appointments.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, appointments.ErrDoctorNotFound):
		return http.StatusNotFound, "doctor_not_found"
	case errors.Is(err, appointments.ErrSlotNotFound):
		return http.StatusNotFound, "slot_not_found"
	case errors.Is(err, appointments.ErrSlotInactive):
		return http.StatusConflict, "slot_inactive"
	case errors.Is(err, appointments.ErrSlotFull):
		return http.StatusConflict, "slot_full"
	case errors.Is(err, appointments.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found"
	case errors.Is(err, appointments.ErrAlreadyCancelled):
		return http.StatusConflict, "already_cancelled"
	case errors.Is(err, appointments.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, appointments.ErrTooManyBookings):
		return http.StatusTooManyRequests, "booking_rate_limited"
	case errors.Is(err, appointments.ErrStorage):
		return http.StatusServiceUnavailable, "storage_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError renders err. Storage and unknown failures are logged and their
// details withheld from the client. Storage failures Postgres marks as
// retryable (deadlock, serialization, lock timeout) carry Retry-After.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	status, code := errorStatus(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var verr *appointments.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "code", code)
		resp.Error = "the booking store is unavailable, try again"
		if status == http.StatusInternalServerError {
			resp.Error = "internal error"
		}
		if errors.Is(err, appointments.ErrStorage) && database.IsTransient(err) {
			w.Header().Set("Retry-After", retryAfterSeconds)
		}
	}
	writeJSON(w, status, resp)
}
