package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BOOKING_LEAD_TIME", "")
	t.Setenv("SLOT_INTERVAL_MINUTES", "")
	t.Setenv("CALENDAR_SYNC_MAX_ATTEMPTS", "")
	t.Setenv("USE_MEMORY_QUEUE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BookingLeadTime != time.Hour {
		t.Fatalf("expected default lead time 1h, got %s", cfg.BookingLeadTime)
	}
	if cfg.SlotIntervalMinutes != 0 {
		t.Fatalf("expected slot interval to follow service duration by default, got %d", cfg.SlotIntervalMinutes)
	}
	if cfg.CalendarSyncMaxAttempts != 4 {
		t.Fatalf("expected 4 sync attempts, got %d", cfg.CalendarSyncMaxAttempts)
	}
	if cfg.CalendarSyncTimeout != 5*time.Second {
		t.Fatalf("expected 5s sync timeout, got %s", cfg.CalendarSyncTimeout)
	}
	if !cfg.UseMemoryQueue {
		t.Fatal("expected memory queue by default")
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("BOOKING_LEAD_TIME", "90m")
	t.Setenv("SLOT_INTERVAL_MINUTES", "15")
	t.Setenv("CALENDAR_SYNC_BASE_DELAY", "500ms")
	t.Setenv("USE_MEMORY_QUEUE", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.BookingLeadTime != 90*time.Minute {
		t.Fatalf("expected lead time override, got %s", cfg.BookingLeadTime)
	}
	if cfg.SlotIntervalMinutes != 15 {
		t.Fatalf("expected slot interval override, got %d", cfg.SlotIntervalMinutes)
	}
	if cfg.CalendarSyncBaseDelay != 500*time.Millisecond {
		t.Fatalf("expected base delay override, got %s", cfg.CalendarSyncBaseDelay)
	}
	if cfg.UseMemoryQueue {
		t.Fatal("expected memory queue disabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("BOOKING_LEAD_TIME", "soon")
	t.Setenv("CALENDAR_WORKER_COUNT", "many")
	cfg := Load()
	if cfg.BookingLeadTime != time.Hour {
		t.Fatalf("expected default lead time for malformed value, got %s", cfg.BookingLeadTime)
	}
	if cfg.CalendarWorkerCount != 2 {
		t.Fatalf("expected default worker count, got %d", cfg.CalendarWorkerCount)
	}
}
