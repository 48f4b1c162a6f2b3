package schedule

import (
	"context"
	"sync"

	"github.com/wolfman30/clinic-booking/internal/bookings"
)

// MemoryStore keeps the schedule in process.
type MemoryStore struct {
	mu        sync.RWMutex
	weekly    BusinessHours
	overrides map[string]Override
}

// NewMemoryStore creates a store with the given weekly hours.
func NewMemoryStore(weekly BusinessHours) *MemoryStore {
	return &MemoryStore{weekly: weekly, overrides: make(map[string]Override)}
}

func (s *MemoryStore) Weekly(ctx context.Context) (BusinessHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weekly, nil
}

func (s *MemoryStore) SaveWeekly(ctx context.Context, hours BusinessHours) error {
	if err := hours.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weekly = hours
	return nil
}

func (s *MemoryStore) OverrideFor(ctx context.Context, date string) (*Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	override, ok := s.overrides[date]
	if !ok {
		return nil, nil
	}
	return &override, nil
}

func (s *MemoryStore) ListOverrides(ctx context.Context) ([]Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Override, 0, len(s.overrides))
	for _, o := range s.overrides {
		out = append(out, o)
	}
	sortOverrides(out)
	return out, nil
}

func (s *MemoryStore) SetOverride(ctx context.Context, override Override) error {
	if err := override.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[override.Date] = override
	return nil
}

func (s *MemoryStore) DeleteOverride(ctx context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.overrides[date]; !ok {
		return bookings.ErrNotFound
	}
	delete(s.overrides, date)
	return nil
}
