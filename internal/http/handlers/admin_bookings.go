package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/admission"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// BookingLister reads bookings for the staff views.
type BookingLister interface {
	List(ctx context.Context, filter bookings.ListFilter) ([]bookings.Booking, error)
}

// AdminBookingsHandler serves staff booking operations.
type AdminBookingsHandler struct {
	controller *admission.Controller
	bookings   BookingLister
	logger     *logging.Logger
}

// NewAdminBookingsHandler creates an AdminBookingsHandler.
func NewAdminBookingsHandler(controller *admission.Controller, lister BookingLister, logger *logging.Logger) *AdminBookingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminBookingsHandler{controller: controller, bookings: lister, logger: logger}
}

// ListBookings filters bookings by date, status and sync status.
// GET /admin/bookings?date=&status=&syncStatus=&limit=
func (h *AdminBookingsHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := bookings.ListFilter{
		Date:       q.Get("date"),
		Status:     bookings.Status(q.Get("status")),
		SyncStatus: bookings.SyncStatus(q.Get("syncStatus")),
	}
	if filter.Date != "" {
		if _, err := bookings.ParseDate(filter.Date, nil); err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
	}
	switch filter.Status {
	case "", bookings.StatusPending, bookings.StatusConfirmed, bookings.StatusCancelled:
	default:
		writeServiceError(w, h.logger, bookings.Invalid("status", "must be pending, confirmed or cancelled"))
		return
	}
	switch filter.SyncStatus {
	case "", bookings.SyncNotAttempted, bookings.SyncSynced, bookings.SyncFailed:
	default:
		writeServiceError(w, h.logger, bookings.Invalid("syncStatus", "must be not_attempted, synced or failed"))
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 500 {
			writeServiceError(w, h.logger, bookings.Invalid("limit", "must be between 1 and 500"))
			return
		}
		filter.Limit = limit
	}

	list, err := h.bookings.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	views := make([]BookingView, 0, len(list))
	for i := range list {
		views = append(views, newBookingView(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookings": views})
}

// ConfirmBooking marks a pending booking as confirmed.
// POST /admin/bookings/{id}/confirm
func (h *AdminBookingsHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.controller.ConfirmBooking, "booking confirmed by staff")
}

// CancelBooking cancels on the patient's behalf.
// POST /admin/bookings/{id}/cancel
func (h *AdminBookingsHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.controller.CancelBooking, "booking cancelled by staff")
}

// ResyncBooking queues a fresh calendar create job.
// POST /admin/bookings/{id}/resync
func (h *AdminBookingsHandler) ResyncBooking(w http.ResponseWriter, r *http.Request) {
	id, err := bookingIDParam(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	booking, err := h.controller.ResyncBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("calendar resync requested", "booking_id", id, "staff", staffSubject(r))
	writeJSON(w, http.StatusAccepted, bookingResponse{Success: true, Booking: newBookingView(booking)})
}

func (h *AdminBookingsHandler) act(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*bookings.Booking, error), msg string) {
	id, err := bookingIDParam(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	booking, err := fn(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.logger.Info(msg, "booking_id", id, "staff", staffSubject(r))
	writeJSON(w, http.StatusOK, bookingResponse{Success: true, Booking: newBookingView(booking)})
}

func staffSubject(r *http.Request) string {
	if claims, ok := middleware.StaffFromContext(r.Context()); ok {
		return claims.Subject
	}
	return ""
}
