package schedule

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/bookings"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "clinic-1"), mr
}

func TestRedisStore_WeeklyDefaultsUntilSaved(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	hours, err := store.Weekly(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultHours(), hours)

	saved := BusinessHours{Saturday: &DayHours{Open: "10:00", Close: "14:00", SlotIntervalMinutes: 20}}
	require.NoError(t, store.SaveWeekly(ctx, saved))
	assert.True(t, mr.Exists("schedule:weekly:clinic-1"))

	hours, err = store.Weekly(ctx)
	require.NoError(t, err)
	assert.Nil(t, hours.Monday)
	require.NotNil(t, hours.Saturday)
	assert.Equal(t, 20, hours.Saturday.SlotIntervalMinutes)
}

func TestRedisStore_Overrides(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	override, err := store.OverrideFor(ctx, "2025-07-04")
	require.NoError(t, err)
	assert.Nil(t, override)

	require.NoError(t, store.SetOverride(ctx, Override{Date: "2025-07-04", Closed: true, Reason: "holiday"}))
	require.NoError(t, store.SetOverride(ctx, Override{Date: "2025-07-01", Open: "12:00", Close: "15:00"}))
	fields, err := mr.HKeys("schedule:overrides:clinic-1")
	require.NoError(t, err)
	assert.Len(t, fields, 2)

	listed, err := store.ListOverrides(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "2025-07-01", listed[0].Date)

	_, err = WindowFor(ctx, store, day(t, "2025-07-04"))
	assert.ErrorIs(t, err, bookings.ErrScheduleClosed)

	w, err := WindowFor(ctx, store, day(t, "2025-07-01"))
	require.NoError(t, err)
	assert.Equal(t, 720, w.Open)

	require.NoError(t, store.DeleteOverride(ctx, "2025-07-04"))
	assert.ErrorIs(t, store.DeleteOverride(ctx, "2025-07-04"), bookings.ErrNotFound)
}

func TestRedisStore_RejectsInvalidOverride(t *testing.T) {
	store, _ := newRedisStore(t)
	err := store.SetOverride(context.Background(), Override{Date: "2025-07-01", Open: "15:00", Close: "12:00"})
	assert.ErrorIs(t, err, bookings.ErrValidation)
}

func TestRedisStore_CorruptWeeklyValue(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set("schedule:weekly:clinic-1", "{not json"))

	_, err := store.Weekly(context.Background())
	assert.Error(t, err)
}

func TestRedisStore_KeyLayoutPerClinic(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveWeekly(ctx, DefaultHours()))
	require.NoError(t, store.SetOverride(ctx, Override{Date: "2025-12-25", Closed: true}))

	assert.ElementsMatch(t, []string{"schedule:weekly:clinic-1", "schedule:overrides:clinic-1"}, mr.Keys())
	assert.JSONEq(t, `{"date":"2025-12-25","closed":true}`, mr.HGet("schedule:overrides:clinic-1", "2025-12-25"))

	other := NewRedisStore(store.redis, "clinic-2")
	hours, err := other.Weekly(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultHours(), hours)
	override, err := other.OverrideFor(ctx, "2025-12-25")
	require.NoError(t, err)
	assert.Nil(t, override)
}
