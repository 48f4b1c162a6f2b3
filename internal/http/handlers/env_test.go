package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/admission"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/internal/schedule"
)

type stubCalendar struct {
	mu      sync.Mutex
	creates []uuid.UUID
	deletes []string
}

func (s *stubCalendar) EnqueueCreate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, id)
	return nil
}

func (s *stubCalendar) EnqueueDelete(ctx context.Context, id uuid.UUID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, eventID)
	return nil
}

var bookingsFilterAll = bookings.ListFilter{}

type testEnv struct {
	router    chi.Router
	store     *bookings.MemoryStore
	schedules *schedule.MemoryStore
	calendar  *stubCalendar
}

// newTestEnv serves a clinic open 09:00-12:00 on weekdays with one 30 minute
// service. The clock is fixed at Monday 2025-06-02 15:00 UTC.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC) }
	store := bookings.NewMemoryStore()
	hours := &schedule.DayHours{Open: "09:00", Close: "12:00"}
	schedules := schedule.NewMemoryStore(schedule.BusinessHours{
		Monday: hours, Tuesday: hours, Wednesday: hours, Thursday: hours, Friday: hours,
	})
	repo := catalog.NewInMemoryRepository(
		catalog.Service{ID: 1, Name: "Consultation", DurationMinutes: 30, Active: true},
		catalog.Service{ID: 2, Name: "Retired peel", DurationMinutes: 45, Active: false},
	)
	services := catalog.New(repo, store, nil)
	policy := availability.Policy{Location: time.UTC, LeadTime: time.Hour}
	calendar := &stubCalendar{}

	controller := admission.NewController(services, schedules, store, calendar, policy, nil).WithClock(now)
	generator := availability.NewGenerator(services, schedules, store, policy, nil).WithClock(now)

	bookingsHandler := NewBookingHandler(controller, nil)
	slots := NewSlotsHandler(generator, nil)
	servicesHandler := NewServicesHandler(services, nil)
	adminBookings := NewAdminBookingsHandler(controller, store, nil)
	adminSchedule := NewAdminScheduleHandler(schedules, nil)

	r := chi.NewRouter()
	r.Get("/slots", slots.GetSlots)
	r.Get("/services", servicesHandler.ListServices)
	r.Post("/booking", bookingsHandler.CreateBooking)
	r.Post("/booking/{id}/cancel", bookingsHandler.CancelBooking)
	r.Route("/admin", func(r chi.Router) {
		r.Get("/bookings", adminBookings.ListBookings)
		r.Post("/bookings/{id}/confirm", adminBookings.ConfirmBooking)
		r.Post("/bookings/{id}/cancel", adminBookings.CancelBooking)
		r.Post("/bookings/{id}/resync", adminBookings.ResyncBooking)
		r.Get("/schedule", adminSchedule.GetSchedule)
		r.Put("/schedule", adminSchedule.PutWeekly)
		r.Put("/schedule/overrides/{date}", adminSchedule.PutOverride)
		r.Delete("/schedule/overrides/{date}", adminSchedule.DeleteOverride)
		r.Get("/services", servicesHandler.ListAllServices)
		r.Post("/services", servicesHandler.CreateService)
		r.Put("/services/{id}", servicesHandler.UpdateService)
	})

	return &testEnv{router: r, store: store, schedules: schedules, calendar: calendar}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func bookingBody(date, at string) map[string]any {
	return map[string]any{
		"serviceId":   1,
		"bookingDate": date,
		"bookingTime": at,
		"patientInfo": map[string]any{
			"name":  "Grace Hopper",
			"email": "grace@example.com",
			"phone": "+15551234567",
		},
		"paymentMethod":    "card",
		"paymentReference": "pi_456",
	}
}
