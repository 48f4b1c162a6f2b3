package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// ServicesHandler exposes the treatment catalog.
type ServicesHandler struct {
	catalog *catalog.Catalog
	logger  *logging.Logger
}

// NewServicesHandler creates a ServicesHandler.
func NewServicesHandler(c *catalog.Catalog, logger *logging.Logger) *ServicesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ServicesHandler{catalog: c, logger: logger}
}

// ListServices returns the active services.
// GET /services
func (h *ServicesHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// ListAllServices includes inactive services.
// GET /admin/services
func (h *ServicesHandler) ListAllServices(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *ServicesHandler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	services, err := h.catalog.List(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if services == nil {
		services = []catalog.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "services": services})
}

// CreateService adds a service.
// POST /admin/services
func (h *ServicesHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateServiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	svc, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "service": svc})
}

// UpdateService applies a partial update. Changing the duration of a service
// that has bookings is rejected.
// PUT /admin/services/{id}
func (h *ServicesHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	var req catalog.UpdateServiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	svc, err := h.catalog.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "service": svc})
}
