// Package calendarsync mirrors bookings into an external calendar.
//
// Bookings are the source of truth for occupancy. Calendar work runs as
// queued jobs after the booking commits; a failed or exhausted job only
// changes the booking's sync status.
package calendarsync

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Bridge creates and deletes external calendar events for bookings.
type Bridge interface {
	CreateEvent(ctx context.Context, booking bookings.Booking) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// EventIDFor derives the external event id from the booking id. Google accepts
// lowercase base32hex ids of 5-1024 characters and hex digits are a subset, so
// every create for one booking targets the same event.
func EventIDFor(bookingID uuid.UUID) string {
	return strings.ReplaceAll(bookingID.String(), "-", "")
}

// LogBridge records calls without contacting any calendar. Used when no
// calendar credentials are configured.
type LogBridge struct {
	logger *logging.Logger
}

// NewLogBridge creates a bridge that only logs.
func NewLogBridge(logger *logging.Logger) *LogBridge {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogBridge{logger: logger}
}

func (b *LogBridge) CreateEvent(ctx context.Context, booking bookings.Booking) (string, error) {
	eventID := "local-" + EventIDFor(booking.ID)
	b.logger.Info("calendar event (stub)",
		"booking_id", booking.ID,
		"date", booking.Date,
		"start", booking.StartTime(),
		"event_id", eventID,
	)
	return eventID, nil
}

func (b *LogBridge) DeleteEvent(ctx context.Context, eventID string) error {
	b.logger.Info("calendar event delete (stub)", "event_id", eventID)
	return nil
}
