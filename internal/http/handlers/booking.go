package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/admission"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// BookingView is the wire form of a booking.
type BookingView struct {
	ID                 uuid.UUID           `json:"id"`
	Status             bookings.Status     `json:"status"`
	ServiceID          int64               `json:"serviceId"`
	BookingDate        string              `json:"bookingDate"`
	StartTime          string              `json:"startTime"`
	EndTime            string              `json:"endTime"`
	PatientInfo        bookings.Patient    `json:"patientInfo"`
	PaymentMethod      string              `json:"paymentMethod,omitempty"`
	CalendarSyncStatus bookings.SyncStatus `json:"calendarSyncStatus"`
	CalendarEventID    string              `json:"calendarEventId,omitempty"`
	SyncAttempts       int                 `json:"syncAttempts"`
	LastSyncError      string              `json:"lastSyncError,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	CancelledAt        *time.Time          `json:"cancelledAt,omitempty"`
}

func newBookingView(b *bookings.Booking) BookingView {
	return BookingView{
		ID:                 b.ID,
		Status:             b.Status,
		ServiceID:          b.ServiceID,
		BookingDate:        b.Date,
		StartTime:          b.StartTime(),
		EndTime:            b.EndTime(),
		PatientInfo:        b.Patient,
		PaymentMethod:      b.PaymentMethod,
		CalendarSyncStatus: b.SyncStatus,
		CalendarEventID:    b.ExternalEventID,
		SyncAttempts:       b.SyncAttempts,
		LastSyncError:      b.LastSyncError,
		CreatedAt:          b.CreatedAt,
		CancelledAt:        b.CancelledAt,
	}
}

type bookingResponse struct {
	Success bool        `json:"success"`
	Booking BookingView `json:"booking"`
}

// BookingHandler serves the public booking funnel.
type BookingHandler struct {
	controller *admission.Controller
	logger     *logging.Logger
}

// NewBookingHandler creates a BookingHandler.
func NewBookingHandler(controller *admission.Controller, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{controller: controller, logger: logger}
}

// CreateBooking admits a booking attempt.
// POST /booking
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req admission.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	booking, err := h.controller.CreateBooking(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingResponse{Success: true, Booking: newBookingView(booking)})
}

// CancelBooking frees the booking's slot.
// POST /booking/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := bookingIDParam(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if _, err := h.controller.CancelBooking(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
