package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type scheduleResponse struct {
	Success   bool                   `json:"success"`
	Weekly    schedule.BusinessHours `json:"weekly"`
	Overrides []schedule.Override    `json:"overrides"`
}

// AdminScheduleHandler edits opening hours and date overrides.
type AdminScheduleHandler struct {
	store  schedule.Store
	logger *logging.Logger
}

// NewAdminScheduleHandler creates an AdminScheduleHandler.
func NewAdminScheduleHandler(store schedule.Store, logger *logging.Logger) *AdminScheduleHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminScheduleHandler{store: store, logger: logger}
}

// GetSchedule returns the weekly hours and every override.
// GET /admin/schedule
func (h *AdminScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	weekly, err := h.store.Weekly(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	overrides, err := h.store.ListOverrides(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if overrides == nil {
		overrides = []schedule.Override{}
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Success: true, Weekly: weekly, Overrides: overrides})
}

// PutWeekly replaces the weekly hours. Existing bookings are not revisited.
// PUT /admin/schedule
func (h *AdminScheduleHandler) PutWeekly(w http.ResponseWriter, r *http.Request) {
	var hours schedule.BusinessHours
	if err := decodeJSON(w, r, &hours); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if err := hours.Validate(); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if err := h.store.SaveWeekly(r.Context(), hours); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("weekly schedule updated", "staff", staffSubject(r))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "weekly": hours})
}

// PutOverride sets the override for one date.
// PUT /admin/schedule/overrides/{date}
func (h *AdminScheduleHandler) PutOverride(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := bookings.ParseDate(date, nil); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	var override schedule.Override
	if err := decodeJSON(w, r, &override); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if override.Date != "" && override.Date != date {
		writeServiceError(w, h.logger, bookings.Invalid("date", "does not match the path"))
		return
	}
	override.Date = date
	if err := h.store.SetOverride(r.Context(), override); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("schedule override set", "date", date, "closed", override.Closed, "staff", staffSubject(r))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "override": override})
}

// DeleteOverride removes the override for one date.
// DELETE /admin/schedule/overrides/{date}
func (h *AdminScheduleHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if err := h.store.DeleteOverride(r.Context(), date); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("schedule override removed", "date", date, "staff", staffSubject(r))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
