package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReserveCheck re-validates a candidate against the active bookings of its
// date. It runs inside the date's serialization boundary, so a nil return
// guarantees nothing else was admitted for that date in between.
type ReserveCheck func(existing []Booking) error

// ListFilter narrows admin booking listings. Zero values match everything.
type ListFilter struct {
	Date       string
	Status     Status
	SyncStatus SyncStatus
	Limit      int
}

// Store is the single source of truth for interval occupancy.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListActiveByDate(ctx context.Context, date string) ([]Booking, error)
	List(ctx context.Context, filter ListFilter) ([]Booking, error)
	CountByService(ctx context.Context, serviceID int64) (int, error)

	// Reserve inserts b as pending/not_attempted when its interval is free
	// and check passes. Overlap check and insert are indivisible per date.
	Reserve(ctx context.Context, b *Booking, check ReserveCheck) error
	// Cancel frees an active booking's interval. Inactive or unknown ids return ErrNotFound.
	Cancel(ctx context.Context, id uuid.UUID) (*Booking, error)
	// Confirm moves a pending booking to confirmed.
	Confirm(ctx context.Context, id uuid.UUID) (*Booking, error)

	MarkSynced(ctx context.Context, id uuid.UUID, eventID string, attempts int) error
	MarkSyncFailed(ctx context.Context, id uuid.UUID, attempts int, reason string) error
	ClearExternalEvent(ctx context.Context, id uuid.UUID) error

	// ListUnsynced returns active bookings still not_attempted that were created before cutoff.
	ListUnsynced(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error)
	// ListOrphanedEvents returns cancelled bookings whose synced external event
	// has not been deleted yet.
	ListOrphanedEvents(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error)
}

const defaultListLimit = 100

func conflicting(existing []Booking, start, end int) *Booking {
	for i := range existing {
		if existing[i].Active() && existing[i].Overlaps(start, end) {
			return &existing[i]
		}
	}
	return nil
}

func prepareReservation(b *Booking, now time.Time) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Status = StatusPending
	b.SyncStatus = SyncNotAttempted
	b.SyncAttempts = 0
	b.LastSyncError = ""
	b.ExternalEventID = ""
	b.CreatedAt = now
	b.UpdatedAt = now
	b.CancelledAt = nil
}
