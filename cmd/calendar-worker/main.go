package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	calendarworker "github.com/wolfman30/clinic-booking/internal/worker/calendar"
	"github.com/wolfman30/clinic-booking/pkg/logging"
	"github.com/wolfman30/clinic-booking/pkg/tracing"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "clinic-booking-calendar-worker",
		Environment: cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		SampleRate:  cfg.OTelSampleRate,
	})
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	logger.Info("starting calendar worker", "env", cfg.Env, "workers", cfg.CalendarWorkerCount)
	if err := calendarworker.Run(ctx, cfg, logger); err != nil {
		logger.Error("calendar worker failed", "error", err)
		stop()
		os.Exit(1)
	}
}
