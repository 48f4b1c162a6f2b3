package bookings

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps bookings in process. Admissions for the same date are
// serialized by a per-date mutex; different dates never contend.
type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*Booking
	dates    sync.Map // date -> *sync.Mutex
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory booking store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[uuid.UUID]*Booking),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) dateLock(date string) *sync.Mutex {
	lock, _ := s.dates.LoadOrStore(date, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("bookings: get %s: %w", id, ErrNotFound)
	}
	out := *b
	return &out, nil
}

func (s *MemoryStore) ListActiveByDate(ctx context.Context, date string) ([]Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(b *Booking) bool { return b.Date == date && b.Active() }, 0, byStart), nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(b *Booking) bool {
		if filter.Date != "" && b.Date != filter.Date {
			return false
		}
		if filter.Status != "" && b.Status != filter.Status {
			return false
		}
		if filter.SyncStatus != "" && b.SyncStatus != filter.SyncStatus {
			return false
		}
		return true
	}, limit, byStart), nil
}

func (s *MemoryStore) CountByService(ctx context.Context, serviceID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, b := range s.bookings {
		if b.ServiceID == serviceID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Reserve(ctx context.Context, b *Booking, check ReserveCheck) error {
	if b == nil {
		return Invalid("booking", "is required")
	}
	lock := s.dateLock(b.Date)
	lock.Lock()
	defer lock.Unlock()

	existing, _ := s.ListActiveByDate(ctx, b.Date)
	if other := conflicting(existing, b.StartMinute, b.EndMinute); other != nil {
		return fmt.Errorf("bookings: reserve %s %s: overlaps booking %s: %w", b.Date, b.StartTime(), other.ID, ErrSlotUnavailable)
	}
	if check != nil {
		if err := check(existing); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("bookings: reserve: %w", err)
	}

	prepareReservation(b, s.now())
	stored := *b
	s.mu.Lock()
	s.bookings[b.ID] = &stored
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Cancel(ctx context.Context, id uuid.UUID) (*Booking, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("bookings: cancel: %w", ErrNotFound)
	}
	lock := s.dateLock(current.Date)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookings[id]
	if !b.Active() {
		return nil, fmt.Errorf("bookings: cancel %s: already cancelled: %w", id, ErrNotFound)
	}
	now := s.now()
	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now
	out := *b
	return &out, nil
}

func (s *MemoryStore) Confirm(ctx context.Context, id uuid.UUID) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("bookings: confirm %s: %w", id, ErrNotFound)
	}
	switch b.Status {
	case StatusConfirmed:
	case StatusPending:
		b.Status = StatusConfirmed
		b.UpdatedAt = s.now()
	default:
		return nil, fmt.Errorf("bookings: confirm %s: %w", id, Invalid("status", "cancelled bookings cannot be confirmed"))
	}
	out := *b
	return &out, nil
}

func (s *MemoryStore) MarkSynced(ctx context.Context, id uuid.UUID, eventID string, attempts int) error {
	return s.update(id, "mark synced", func(b *Booking) {
		b.SyncStatus = SyncSynced
		b.ExternalEventID = eventID
		b.SyncAttempts = attempts
		b.LastSyncError = ""
	})
}

func (s *MemoryStore) MarkSyncFailed(ctx context.Context, id uuid.UUID, attempts int, reason string) error {
	return s.update(id, "mark sync failed", func(b *Booking) {
		b.SyncStatus = SyncFailed
		b.SyncAttempts = attempts
		b.LastSyncError = reason
	})
}

func (s *MemoryStore) ClearExternalEvent(ctx context.Context, id uuid.UUID) error {
	return s.update(id, "clear external event", func(b *Booking) {
		b.ExternalEventID = ""
	})
}

func (s *MemoryStore) ListUnsynced(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(b *Booking) bool {
		return b.Active() && b.SyncStatus == SyncNotAttempted && b.CreatedAt.Before(cutoff)
	}, limit, byCreated), nil
}

func (s *MemoryStore) ListOrphanedEvents(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(b *Booking) bool {
		return b.Status == StatusCancelled && b.SyncStatus == SyncSynced && b.ExternalEventID != "" && b.UpdatedAt.Before(cutoff)
	}, limit, byCreated), nil
}

func (s *MemoryStore) update(id uuid.UUID, action string, apply func(*Booking)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return fmt.Errorf("bookings: %s %s: %w", action, id, ErrNotFound)
	}
	apply(b)
	b.UpdatedAt = s.now()
	return nil
}

// collect must be called with s.mu held.
func (s *MemoryStore) collect(match func(*Booking) bool, limit int, less func(a, b *Booking) bool) []Booking {
	var out []Booking
	for _, b := range s.bookings {
		if match(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func byStart(a, b *Booking) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.StartMinute != b.StartMinute {
		return a.StartMinute < b.StartMinute
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func byCreated(a, b *Booking) bool {
	return a.CreatedAt.Before(b.CreatedAt)
}
