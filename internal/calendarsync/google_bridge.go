package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// ServiceLookup resolves service names for event titles.
type ServiceLookup interface {
	Get(ctx context.Context, id int64) (*catalog.Service, error)
}

// GoogleConfig configures the Google Calendar bridge.
type GoogleConfig struct {
	CalendarID  string
	Location    *time.Location
	MeetEnabled bool
}

// GoogleBridge writes booking events to a Google Calendar, optionally with a
// Meet link.
type GoogleBridge struct {
	events     *calendar.EventsService
	calendarID string
	loc        *time.Location
	meet       bool
	services   ServiceLookup
	logger     *logging.Logger
}

// NewGoogleBridge builds a bridge from client options such as
// option.WithCredentialsFile.
func NewGoogleBridge(ctx context.Context, cfg GoogleConfig, services ServiceLookup, logger *logging.Logger, opts ...option.ClientOption) (*GoogleBridge, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendarsync: create google calendar client: %w", err)
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GoogleBridge{
		events:     svc.Events,
		calendarID: cfg.CalendarID,
		loc:        cfg.Location,
		meet:       cfg.MeetEnabled,
		services:   services,
		logger:     logger,
	}, nil
}

// CreateEvent inserts the booking's event under EventIDFor(b.ID) and returns
// that id. A 409 means an earlier attempt already created it, which counts as
// success. The booking id doubles as the Meet request id.
func (g *GoogleBridge) CreateEvent(ctx context.Context, b bookings.Booking) (string, error) {
	day, err := bookings.ParseDate(b.Date, g.loc)
	if err != nil {
		return "", err
	}
	eventID := EventIDFor(b.ID)
	event := &calendar.Event{
		Id:          eventID,
		Summary:     g.summary(ctx, b),
		Description: fmt.Sprintf("Booking %s\nPatient: %s\nPhone: %s\nPayment: %s %s", b.ID, b.Patient.Name, b.Patient.Phone, b.PaymentMethod, b.PaymentReference),
		Start: &calendar.EventDateTime{
			DateTime: bookings.At(day, b.StartMinute).Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: bookings.At(day, b.EndMinute).Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{"bookingId": b.ID.String()},
		},
	}
	if b.Patient.Email != "" {
		event.Attendees = []*calendar.EventAttendee{{Email: b.Patient.Email, DisplayName: b.Patient.Name}}
	}

	if g.meet {
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             b.ID.String(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
	}

	call := g.events.Insert(g.calendarID, event).Context(ctx)
	if g.meet {
		call = call.ConferenceDataVersion(1)
	}
	created, err := call.Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		g.logger.Info("google calendar event already exists", "booking_id", b.ID, "event_id", eventID)
		return eventID, nil
	}
	if err != nil {
		return "", fmt.Errorf("calendarsync: insert event: %w", err)
	}
	g.logger.Info("google calendar event created", "booking_id", b.ID, "event_id", created.Id, "meet", created.HangoutLink != "")
	return created.Id, nil
}

// DeleteEvent removes an event. An event that is already gone counts as deleted.
func (g *GoogleBridge) DeleteEvent(ctx context.Context, eventID string) error {
	err := g.events.Delete(g.calendarID, eventID).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("calendarsync: delete event %s: %w", eventID, err)
	}
	return nil
}

func (g *GoogleBridge) summary(ctx context.Context, b bookings.Booking) string {
	name := "Appointment"
	if g.services != nil {
		if svc, err := g.services.Get(ctx, b.ServiceID); err == nil {
			name = svc.Name
		}
	}
	return fmt.Sprintf("%s - %s", name, b.Patient.Name)
}
