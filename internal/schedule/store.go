package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-booking/internal/bookings"
)

// Store persists the weekly schedule and date overrides.
type Store interface {
	Weekly(ctx context.Context) (BusinessHours, error)
	SaveWeekly(ctx context.Context, hours BusinessHours) error
	OverrideFor(ctx context.Context, date string) (*Override, error)
	ListOverrides(ctx context.Context) ([]Override, error)
	SetOverride(ctx context.Context, override Override) error
	DeleteOverride(ctx context.Context, date string) error
}

// WindowFor resolves the effective window for date from store.
func WindowFor(ctx context.Context, store Store, date time.Time) (Window, error) {
	day := date.Format(bookings.DateLayout)
	override, err := store.OverrideFor(ctx, day)
	if err != nil {
		return Window{}, fmt.Errorf("schedule: load override %s: %w", day, err)
	}
	var weekly BusinessHours
	if override == nil {
		weekly, err = store.Weekly(ctx)
		if err != nil {
			return Window{}, fmt.Errorf("schedule: load weekly hours: %w", err)
		}
	}
	return Resolve(weekly, override, date)
}
