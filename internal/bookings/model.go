package bookings

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// SyncStatus tracks the external calendar event for a booking.
type SyncStatus string

const (
	SyncNotAttempted SyncStatus = "not_attempted"
	SyncSynced       SyncStatus = "synced"
	SyncFailed       SyncStatus = "failed"
)

// Patient identifies who the booking is for.
type Patient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Validate requires a name and at least one way to reach the patient.
func (p Patient) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return Invalid("patientInfo.name", "is required")
	}
	if strings.TrimSpace(p.Email) == "" && strings.TrimSpace(p.Phone) == "" {
		return Invalid("patientInfo", "email or phone is required")
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return Invalid("patientInfo.email", "is not a valid address")
		}
	}
	return nil
}

// Booking is a reservation of [StartMinute, EndMinute) on Date.
type Booking struct {
	ID               uuid.UUID
	ServiceID        int64
	Date             string
	StartMinute      int
	EndMinute        int
	Patient          Patient
	Status           Status
	PaymentMethod    string
	PaymentReference string
	SyncStatus       SyncStatus
	ExternalEventID  string
	SyncAttempts     int
	LastSyncError    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CancelledAt      *time.Time
}

// Active reports whether the booking occupies its interval.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// Overlaps reports whether the booking's interval intersects [start,end).
func (b *Booking) Overlaps(start, end int) bool {
	return Overlaps(b.StartMinute, b.EndMinute, start, end)
}

// StartTime is the booking start as "HH:MM".
func (b *Booking) StartTime() string {
	return FormatClock(b.StartMinute)
}

// EndTime is the booking end as "HH:MM".
func (b *Booking) EndTime() string {
	return FormatClock(b.EndMinute)
}
