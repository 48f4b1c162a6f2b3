package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// StaffAlerter emails the front desk when a booking needs manual follow-up.
type StaffAlerter struct {
	email  EmailSender
	to     string
	logger *logging.Logger
}

// NewStaffAlerter returns nil when there is no sender or recipient, which
// callers treat as alerts disabled.
func NewStaffAlerter(email EmailSender, to string, logger *logging.Logger) *StaffAlerter {
	if email == nil || strings.TrimSpace(to) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StaffAlerter{email: email, to: to, logger: logger}
}

// AlertSyncExhausted reports a booking whose calendar event could not be created.
func (a *StaffAlerter) AlertSyncExhausted(ctx context.Context, b bookings.Booking, cause error) error {
	if a == nil {
		return nil
	}
	subject := fmt.Sprintf("Calendar sync failed: %s %s", b.Date, b.StartTime())

	var body strings.Builder
	fmt.Fprintf(&body, "The booking below is held but has no calendar event.\n\n")
	fmt.Fprintf(&body, "Booking: %s\n", b.ID)
	fmt.Fprintf(&body, "When: %s %s-%s\n", b.Date, b.StartTime(), b.EndTime())
	fmt.Fprintf(&body, "Patient: %s", b.Patient.Name)
	if b.Patient.Email != "" {
		fmt.Fprintf(&body, " <%s>", b.Patient.Email)
	}
	if b.Patient.Phone != "" {
		fmt.Fprintf(&body, " %s", b.Patient.Phone)
	}
	fmt.Fprintf(&body, "\nStatus: %s\nAttempts: %d\n", b.Status, b.SyncAttempts)
	if cause != nil {
		fmt.Fprintf(&body, "Last error: %v\n", cause)
	}
	body.WriteString("\nCreate the event by hand or resync the booking from the admin console.\n")

	if err := a.email.Send(ctx, EmailMessage{To: a.to, Subject: subject, Body: body.String()}); err != nil {
		return fmt.Errorf("notify: send sync alert: %w", err)
	}
	a.logger.Info("staff alerted about calendar sync", "booking_id", b.ID)
	return nil
}
