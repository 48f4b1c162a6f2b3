package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	ClinicID      string

	// Scheduling policy. SlotIntervalMinutes of 0 steps slots by the service duration.
	ClinicTimezone      string
	BookingLeadTime     time.Duration
	SlotIntervalMinutes int

	// Calendar sync.
	UseMemoryQueue            bool
	CalendarWorkerCount       int
	CalendarQueueURL          string
	CalendarJobsTable         string
	CalendarSyncTimeout       time.Duration
	CalendarSyncMaxAttempts   int
	CalendarSyncBaseDelay     time.Duration
	CalendarSyncMaxDelay      time.Duration
	CalendarReconcileInterval time.Duration
	CalendarReconcileGrace    time.Duration
	GoogleCalendarID          string
	GoogleCredentialsFile     string
	GoogleMeetEnabled         bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	SendGridAPIKey  string
	SESFromEmail    string
	EmailFrom       string
	EmailFromName   string
	StaffAlertEmail string

	OTelEndpoint   string
	OTelInsecure   bool
	OTelSampleRate float64
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		ClinicID:      getEnv("CLINIC_ID", "default"),

		ClinicTimezone:      getEnv("CLINIC_TIMEZONE", "America/New_York"),
		BookingLeadTime:     getEnvAsDuration("BOOKING_LEAD_TIME", 60*time.Minute),
		SlotIntervalMinutes: getEnvAsInt("SLOT_INTERVAL_MINUTES", 0),

		UseMemoryQueue:            getEnvAsBool("USE_MEMORY_QUEUE", true),
		CalendarWorkerCount:       getEnvAsInt("CALENDAR_WORKER_COUNT", 2),
		CalendarQueueURL:          getEnv("CALENDAR_QUEUE_URL", ""),
		CalendarJobsTable:         getEnv("CALENDAR_JOBS_TABLE", ""),
		CalendarSyncTimeout:       getEnvAsDuration("CALENDAR_SYNC_TIMEOUT", 5*time.Second),
		CalendarSyncMaxAttempts:   getEnvAsInt("CALENDAR_SYNC_MAX_ATTEMPTS", 4),
		CalendarSyncBaseDelay:     getEnvAsDuration("CALENDAR_SYNC_BASE_DELAY", 2*time.Second),
		CalendarSyncMaxDelay:      getEnvAsDuration("CALENDAR_SYNC_MAX_DELAY", 5*time.Minute),
		CalendarReconcileInterval: getEnvAsDuration("CALENDAR_RECONCILE_INTERVAL", time.Minute),
		CalendarReconcileGrace:    getEnvAsDuration("CALENDAR_RECONCILE_GRACE", 2*time.Minute),
		GoogleCalendarID:          getEnv("GOOGLE_CALENDAR_ID", "primary"),
		GoogleCredentialsFile:     getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleMeetEnabled:         getEnvAsBool("GOOGLE_MEET_ENABLED", true),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		SESFromEmail:    getEnv("SES_FROM_EMAIL", ""),
		EmailFrom:       getEnv("EMAIL_FROM", "bookings@example.com"),
		EmailFromName:   getEnv("EMAIL_FROM_NAME", "Clinic Bookings"),
		StaffAlertEmail: getEnv("STAFF_ALERT_EMAIL", ""),

		OTelEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelInsecure:   getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OTelSampleRate: getEnvAsFloat("OTEL_SAMPLE_RATE", 1),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
