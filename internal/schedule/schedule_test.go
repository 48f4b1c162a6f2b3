package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/bookings"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := bookings.ParseDate(s, time.UTC)
	require.NoError(t, err)
	return d
}

func TestResolve_WeekdayRule(t *testing.T) {
	weekly := BusinessHours{Tuesday: &DayHours{Open: "09:00", Close: "12:00", SlotIntervalMinutes: 15}}

	// 2025-06-03 is a Tuesday
	w, err := Resolve(weekly, nil, day(t, "2025-06-03"))
	require.NoError(t, err)
	assert.Equal(t, Window{Open: 540, Close: 720, Interval: 15}, w)
	assert.Equal(t, 180, w.Length())

	_, err = Resolve(weekly, nil, day(t, "2025-06-04"))
	assert.ErrorIs(t, err, bookings.ErrScheduleClosed)
}

func TestResolve_OverrideWins(t *testing.T) {
	weekly := DefaultHours()

	w, err := Resolve(weekly, &Override{Date: "2025-06-07", Open: "10:00", Close: "13:00"}, day(t, "2025-06-07"))
	require.NoError(t, err)
	assert.Equal(t, 600, w.Open)
	assert.Equal(t, 780, w.Close)

	_, err = Resolve(weekly, &Override{Date: "2025-06-02", Closed: true, Reason: "holiday"}, day(t, "2025-06-02"))
	assert.ErrorIs(t, err, bookings.ErrScheduleClosed)
}

func TestBusinessHours_Validate(t *testing.T) {
	bad := BusinessHours{Monday: &DayHours{Open: "12:00", Close: "09:00"}}
	err := bad.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, bookings.ErrValidation)

	malformed := BusinessHours{Friday: &DayHours{Open: "9am", Close: "17:00"}}
	assert.ErrorIs(t, malformed.Validate(), bookings.ErrValidation)

	good := DefaultHours()
	assert.NoError(t, good.Validate())
	assert.True(t, good.HasAnyHours())
	assert.False(t, (&BusinessHours{}).HasAnyHours())
}

func TestOverride_Validate(t *testing.T) {
	assert.NoError(t, (&Override{Date: "2025-12-25", Closed: true}).Validate())
	assert.ErrorIs(t, (&Override{Date: "12/25/2025", Closed: true}).Validate(), bookings.ErrValidation)
	assert.ErrorIs(t, (&Override{Date: "2025-12-24", Open: "10:00", Close: "10:00"}).Validate(), bookings.ErrValidation)
	assert.ErrorIs(t, (&Override{Date: "2025-12-24", Open: "09:00", Close: "10:00", SlotIntervalMinutes: -5}).Validate(), bookings.ErrValidation)
}

func TestMemoryStore_WindowFor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultHours())

	w, err := WindowFor(ctx, store, day(t, "2025-06-02"))
	require.NoError(t, err)
	assert.Equal(t, Window{Open: 540, Close: 1020}, w)

	require.NoError(t, store.SetOverride(ctx, Override{Date: "2025-06-02", Closed: true}))
	_, err = WindowFor(ctx, store, day(t, "2025-06-02"))
	assert.ErrorIs(t, err, bookings.ErrScheduleClosed)

	require.NoError(t, store.DeleteOverride(ctx, "2025-06-02"))
	assert.ErrorIs(t, store.DeleteOverride(ctx, "2025-06-02"), bookings.ErrNotFound)

	_, err = WindowFor(ctx, store, day(t, "2025-06-02"))
	assert.NoError(t, err)

	err = store.SaveWeekly(ctx, BusinessHours{Monday: &DayHours{Open: "17:00", Close: "09:00"}})
	assert.ErrorIs(t, err, bookings.ErrValidation)
}
