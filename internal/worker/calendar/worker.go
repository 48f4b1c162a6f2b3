// Package calendarworker runs the calendar sync worker and reconciler, either
// inside the API process or as the standalone calendar-worker binary.
package calendarworker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-booking/cmd/mainconfig"
	appbootstrap "github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/calendarsync"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

// Deps is everything the sync loop needs.
type Deps struct {
	Bridge    calendarsync.Bridge
	Queue     calendarsync.Queue
	Store     bookings.Store
	Publisher calendarsync.JobPublisher
	Options   []calendarsync.WorkerOption

	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration
	Logger            *logging.Logger
}

// Start launches the worker pool and the reconciler. The returned function
// blocks until both have stopped after ctx is cancelled.
func Start(ctx context.Context, deps Deps) (wait func()) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	worker := calendarsync.NewWorker(deps.Bridge, deps.Queue, deps.Store, logger, deps.Options...)
	worker.Start(ctx)

	reconciler := calendarsync.NewReconciler(deps.Store, deps.Publisher, logger).
		WithInterval(deps.ReconcileInterval).
		WithGrace(deps.ReconcileGrace)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()

	logger.Info("calendar sync started",
		"reconcile_interval", deps.ReconcileInterval.String(),
		"reconcile_grace", deps.ReconcileGrace.String(),
	)
	return func() {
		worker.Wait()
		wg.Wait()
	}
}

// WaitWithTimeout runs wait and gives up after the shutdown timeout.
func WaitWithTimeout(wait func(), logger *logging.Logger) {
	if logger == nil {
		logger = logging.Default()
	}
	doneCtx, doneCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("calendar worker stopped")
	case <-doneCtx.Done():
		logger.Error("calendar worker shutdown timed out", "error", doneCtx.Err())
	}
}

// Run starts the SQS-backed calendar worker and blocks until ctx is canceled.
func Run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg == nil {
		return fmt.Errorf("calendar worker requires config")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.UseMemoryQueue {
		return fmt.Errorf("calendar worker cannot run when USE_MEMORY_QUEUE=true; the API process runs the worker inline instead")
	}

	pool, err := appbootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if pool == nil {
		return fmt.Errorf("calendar worker requires DATABASE_URL")
	}
	defer pool.Close()
	stores := appbootstrap.BuildStores(cfg, pool, nil, logger)

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	queue, err := appbootstrap.BuildCalendarQueue(cfg, &awsCfg, logger)
	if err != nil {
		return err
	}
	m := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	deps, err := BuildDeps(ctx, cfg, &awsCfg, stores, queue, m, logger)
	if err != nil {
		return err
	}

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	wait := Start(ctx, deps)
	<-ctx.Done()
	logger.Info("shutting down calendar worker...")
	WaitWithTimeout(wait, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return nil
}

// BuildDeps wires the bridge, job audit store and staff alerts around an
// already built queue. m may be nil.
func BuildDeps(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, stores appbootstrap.Stores, queue calendarsync.Queue, m *metrics.BookingMetrics, logger *logging.Logger) (Deps, error) {
	if logger == nil {
		logger = logging.Default()
	}
	bridge, err := appbootstrap.BuildBridge(ctx, cfg, stores.Services, logger)
	if err != nil {
		return Deps{}, err
	}
	jobs := appbootstrap.BuildJobRecorder(cfg, awsCfg, logger)
	email := appbootstrap.BuildEmailSender(cfg, awsCfg, logger)
	alerter := appbootstrap.BuildStaffAlerter(cfg, email, logger)

	return Deps{
		Bridge:            bridge,
		Queue:             queue,
		Store:             stores.Bookings,
		Publisher:         calendarsync.NewPublisher(queue, jobs, logger),
		Options:           appbootstrap.WorkerOptions(cfg, jobs, alerter, m),
		ReconcileInterval: cfg.CalendarReconcileInterval,
		ReconcileGrace:    cfg.CalendarReconcileGrace,
		Logger:            logger,
	}, nil
}
