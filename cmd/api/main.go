package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-booking/cmd/mainconfig"
	"github.com/wolfman30/clinic-booking/internal/admission"
	"github.com/wolfman30/clinic-booking/internal/api/router"
	appbootstrap "github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/calendarsync"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	calendarworker "github.com/wolfman30/clinic-booking/internal/worker/calendar"
	"github.com/wolfman30/clinic-booking/pkg/logging"
	"github.com/wolfman30/clinic-booking/pkg/tracing"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"memory_queue", cfg.UseMemoryQueue,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "clinic-booking-api",
		Environment: cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		SampleRate:  cfg.OTelSampleRate,
	})
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	a, err := buildApp(ctx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		logger.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	a.Close()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

// app is the wired API plus whatever it started in the background.
type app struct {
	handler http.Handler
	logger  *logging.Logger
	wait    func()
	closers []func()
}

// Close waits for background work to stop and releases connections. ctx
// passed to buildApp must be cancelled first.
func (a *app) Close() {
	if a.wait != nil {
		calendarworker.WaitWithTimeout(a.wait, a.logger)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*app, error) {
	a := &app{logger: logger}

	pool, err := appbootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	var reportingDB *sql.DB
	if pool != nil {
		reportingDB = stdlib.OpenDBFromPool(pool)
		a.closers = append(a.closers, pool.Close, func() { _ = reportingDB.Close() })
	}

	redisClient := appbootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}

	stores := appbootstrap.BuildStores(cfg, pool, redisClient, logger)
	policy, err := appbootstrap.BuildPolicy(cfg)
	if err != nil {
		return nil, err
	}

	var awsCfg *aws.Config
	if appbootstrap.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		awsCfg = &loaded
	}

	m := metrics.NewBookingMetrics(reg)
	services := catalog.New(stores.Services, stores.Bookings, logger)

	queue, err := appbootstrap.BuildCalendarQueue(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	var publisher admission.CalendarPublisher
	if cfg.UseMemoryQueue {
		deps, err := calendarworker.BuildDeps(ctx, cfg, awsCfg, stores, queue, m, logger)
		if err != nil {
			return nil, err
		}
		publisher = deps.Publisher
		a.wait = calendarworker.Start(ctx, deps)
	} else {
		publisher = calendarsync.NewPublisher(queue, appbootstrap.BuildJobRecorder(cfg, awsCfg, logger), logger)
	}

	controller := admission.NewController(services, stores.Schedules, stores.Bookings, publisher, policy, logger).WithMetrics(m)
	generator := availability.NewGenerator(services, stores.Schedules, stores.Bookings, policy, logger).WithMetrics(m)

	checks := map[string]handlers.HealthCheck{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go limiter.RunSweeper(ctx.Done())
	}

	a.handler = router.New(&router.Config{
		Logger:             logger,
		Health:             handlers.NewHealthHandler(checks),
		Slots:              handlers.NewSlotsHandler(generator, logger),
		Bookings:           handlers.NewBookingHandler(controller, logger),
		Services:           handlers.NewServicesHandler(services, logger),
		AdminBookings:      handlers.NewAdminBookingsHandler(controller, stores.Bookings, logger),
		AdminSchedule:      handlers.NewAdminScheduleHandler(stores.Schedules, logger),
		CalendarSync:       handlers.NewCalendarSyncHandler(reportingDB, gatherer, logger),
		MetricsHandler:     promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
	})
	return a, nil
}
