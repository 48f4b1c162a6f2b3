package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// ConnectPostgres opens a pgx pool. An empty URL returns nil, nil and the
// caller falls back to in-memory stores.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, nil
}

// Stores groups the persistence layer every binary shares.
type Stores struct {
	Bookings  bookings.Store
	Services  catalog.Repository
	Schedules schedule.Store
}

// BuildStores picks Postgres and Redis backends when available and in-memory
// ones otherwise. The in-memory fallback only suits a single process.
func BuildStores(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *logging.Logger) Stores {
	if logger == nil {
		logger = logging.Default()
	}
	var out Stores
	if pool != nil {
		out.Bookings = bookings.NewPostgresStore(pool)
		out.Services = catalog.NewPostgresRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set; bookings and services are kept in memory")
		out.Bookings = bookings.NewMemoryStore()
		out.Services = catalog.NewInMemoryRepository()
	}
	if redisClient != nil {
		out.Schedules = schedule.NewRedisStore(redisClient, cfg.ClinicID)
	} else {
		logger.Warn("REDIS_ADDR not set; schedule is kept in memory with default hours")
		out.Schedules = schedule.NewMemoryStore(schedule.DefaultHours())
	}
	return out
}

// BuildPolicy turns the scheduling settings into an availability policy.
func BuildPolicy(cfg *appconfig.Config) (availability.Policy, error) {
	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		return availability.Policy{}, fmt.Errorf("bootstrap: load clinic timezone %q: %w", cfg.ClinicTimezone, err)
	}
	if cfg.BookingLeadTime < 0 {
		return availability.Policy{}, fmt.Errorf("bootstrap: BOOKING_LEAD_TIME must not be negative")
	}
	if cfg.SlotIntervalMinutes < 0 {
		return availability.Policy{}, fmt.Errorf("bootstrap: SLOT_INTERVAL_MINUTES must not be negative")
	}
	return availability.Policy{
		Location:     loc,
		LeadTime:     cfg.BookingLeadTime,
		SlotInterval: cfg.SlotIntervalMinutes,
	}, nil
}
