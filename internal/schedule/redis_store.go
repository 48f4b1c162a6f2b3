package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking/internal/bookings"
)

// RedisStore persists the schedule in Redis: the weekly hours as one JSON
// value and overrides as a hash keyed by date.
type RedisStore struct {
	redis    *redis.Client
	clinicID string
}

// NewRedisStore creates a schedule store for one clinic.
func NewRedisStore(redisClient *redis.Client, clinicID string) *RedisStore {
	if clinicID == "" {
		clinicID = "default"
	}
	return &RedisStore{redis: redisClient, clinicID: clinicID}
}

func (s *RedisStore) weeklyKey() string {
	return fmt.Sprintf("schedule:weekly:%s", s.clinicID)
}

func (s *RedisStore) overridesKey() string {
	return fmt.Sprintf("schedule:overrides:%s", s.clinicID)
}

// Weekly returns the saved weekly hours, or DefaultHours if none were saved.
func (s *RedisStore) Weekly(ctx context.Context) (BusinessHours, error) {
	data, err := s.redis.Get(ctx, s.weeklyKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultHours(), nil
	}
	if err != nil {
		return BusinessHours{}, fmt.Errorf("schedule: get weekly: %w", err)
	}
	var hours BusinessHours
	if err := json.Unmarshal(data, &hours); err != nil {
		return BusinessHours{}, fmt.Errorf("schedule: unmarshal weekly: %w", err)
	}
	return hours, nil
}

func (s *RedisStore) SaveWeekly(ctx context.Context, hours BusinessHours) error {
	if err := hours.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(hours)
	if err != nil {
		return fmt.Errorf("schedule: marshal weekly: %w", err)
	}
	if err := s.redis.Set(ctx, s.weeklyKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("schedule: set weekly: %w", err)
	}
	return nil
}

func (s *RedisStore) OverrideFor(ctx context.Context, date string) (*Override, error) {
	data, err := s.redis.HGet(ctx, s.overridesKey(), date).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("schedule: get override: %w", err)
	}
	var override Override
	if err := json.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("schedule: unmarshal override: %w", err)
	}
	return &override, nil
}

func (s *RedisStore) ListOverrides(ctx context.Context) ([]Override, error) {
	values, err := s.redis.HGetAll(ctx, s.overridesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("schedule: list overrides: %w", err)
	}
	out := make([]Override, 0, len(values))
	for date, raw := range values {
		var override Override
		if err := json.Unmarshal([]byte(raw), &override); err != nil {
			return nil, fmt.Errorf("schedule: unmarshal override %s: %w", date, err)
		}
		out = append(out, override)
	}
	sortOverrides(out)
	return out, nil
}

func (s *RedisStore) SetOverride(ctx context.Context, override Override) error {
	if err := override.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(override)
	if err != nil {
		return fmt.Errorf("schedule: marshal override: %w", err)
	}
	if err := s.redis.HSet(ctx, s.overridesKey(), override.Date, data).Err(); err != nil {
		return fmt.Errorf("schedule: set override: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteOverride(ctx context.Context, date string) error {
	removed, err := s.redis.HDel(ctx, s.overridesKey(), date).Result()
	if err != nil {
		return fmt.Errorf("schedule: delete override: %w", err)
	}
	if removed == 0 {
		return bookings.ErrNotFound
	}
	return nil
}
