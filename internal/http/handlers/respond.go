// Package handlers exposes the booking engine over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message})
}

// writeServiceError maps domain errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var verr *bookings.ValidationError
	switch {
	case errors.Is(err, bookings.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot is no longer available")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, bookings.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bookings.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return bookings.Invalid("body", "is required")
		}
		return bookings.Invalid("body", fmt.Sprintf("malformed json: %v", err))
	}
	return nil
}

func bookingIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		return uuid.Nil, bookings.Invalid("id", "must be a booking id")
	}
	return id, nil
}

func int64Param(raw, field string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, bookings.Invalid(field, "must be a positive integer")
	}
	return n, nil
}
