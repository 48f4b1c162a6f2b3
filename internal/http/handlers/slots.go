package handlers

import (
	"net/http"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type slotsResponse struct {
	Success        bool                `json:"success"`
	Date           string              `json:"date"`
	ServiceID      int64               `json:"serviceId"`
	AvailableSlots []availability.Slot `json:"availableSlots"`
}

// SlotsHandler lists bookable start times.
type SlotsHandler struct {
	generator *availability.Generator
	logger    *logging.Logger
}

// NewSlotsHandler creates a SlotsHandler.
func NewSlotsHandler(generator *availability.Generator, logger *logging.Logger) *SlotsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotsHandler{generator: generator, logger: logger}
}

// GetSlots returns the free slots for a service on a date.
// GET /slots?date=YYYY-MM-DD&serviceId=N
func (h *SlotsHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeServiceError(w, h.logger, bookings.Invalid("date", "is required"))
		return
	}
	serviceID, err := int64Param(r.URL.Query().Get("serviceId"), "serviceId")
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	slots, err := h.generator.GenerateSlots(r.Context(), date, serviceID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		Success:        true,
		Date:           date,
		ServiceID:      serviceID,
		AvailableSlots: slots,
	})
}
