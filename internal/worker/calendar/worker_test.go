package calendarworker

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appbootstrap "github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/calendarsync"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func reserve(t *testing.T, store bookings.Store, start int) bookings.Booking {
	t.Helper()
	b := &bookings.Booking{
		ServiceID:     1,
		Date:          "2025-06-03",
		StartMinute:   start,
		EndMinute:     start + 30,
		Patient:       bookings.Patient{Name: "Ada Lovelace", Email: "ada@example.com"},
		PaymentMethod: "card",
	}
	require.NoError(t, store.Reserve(context.Background(), b, nil))
	return *b
}

func syncedWithin(t *testing.T, store bookings.Store, b bookings.Booking) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), b.ID)
		return err == nil && got.SyncStatus == bookings.SyncSynced && got.ExternalEventID != ""
	}, 3*time.Second, 5*time.Millisecond)
}

func TestStartSyncsPublishedBooking(t *testing.T) {
	logger := logging.New("error")
	store := bookings.NewMemoryStore()
	queue := calendarsync.NewMemoryQueue(8)
	publisher := calendarsync.NewPublisher(queue, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	wait := Start(ctx, Deps{
		Bridge:            calendarsync.NewLogBridge(logger),
		Queue:             queue,
		Store:             store,
		Publisher:         publisher,
		Options:           []calendarsync.WorkerOption{calendarsync.WithWorkerCount(1), calendarsync.WithReceiveWaitSeconds(1)},
		ReconcileInterval: time.Hour,
		Logger:            logger,
	})

	b := reserve(t, store, 9*60)
	require.NoError(t, publisher.EnqueueCreate(ctx, b.ID))
	syncedWithin(t, store, b)

	cancel()
	WaitWithTimeout(wait, logger)
}

func TestStartReconcilesBookingThatWasNeverPublished(t *testing.T) {
	logger := logging.New("error")
	store := bookings.NewMemoryStore()
	queue := calendarsync.NewMemoryQueue(8)

	b := reserve(t, store, 10*60)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wait := Start(ctx, Deps{
		Bridge:            calendarsync.NewLogBridge(logger),
		Queue:             queue,
		Store:             store,
		Publisher:         calendarsync.NewPublisher(queue, nil, logger),
		Options:           []calendarsync.WorkerOption{calendarsync.WithWorkerCount(1), calendarsync.WithReceiveWaitSeconds(1)},
		ReconcileInterval: 10 * time.Millisecond,
		ReconcileGrace:    0,
		Logger:            logger,
	})

	syncedWithin(t, store, b)

	cancel()
	WaitWithTimeout(wait, logger)
}

func TestWaitWithTimeoutReturnsWhenWaitFinishes(t *testing.T) {
	done := make(chan struct{})
	go func() {
		WaitWithTimeout(func() {}, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitWithTimeout did not return")
	}
}

func TestRunRejectsMemoryQueue(t *testing.T) {
	cfg := &appconfig.Config{UseMemoryQueue: true}
	err := Run(context.Background(), cfg, logging.New("error"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USE_MEMORY_QUEUE")
}

func TestRunRequiresConfig(t *testing.T) {
	require.Error(t, Run(context.Background(), nil, nil))
}

func TestRunRequiresDatabase(t *testing.T) {
	cfg := &appconfig.Config{UseMemoryQueue: false}
	err := Run(context.Background(), cfg, logging.New("error"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestBuildDepsFallsBackToLogBridge(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{
		ClinicTimezone:            "UTC",
		CalendarWorkerCount:       2,
		CalendarSyncMaxAttempts:   3,
		CalendarReconcileInterval: 30 * time.Second,
		CalendarReconcileGrace:    time.Minute,
	}
	stores := appbootstrap.Stores{
		Bookings:  bookings.NewMemoryStore(),
		Services:  catalog.NewInMemoryRepository(),
		Schedules: schedule.NewMemoryStore(schedule.DefaultHours()),
	}
	queue := calendarsync.NewMemoryQueue(1)

	deps, err := BuildDeps(context.Background(), cfg, &aws.Config{Region: "us-east-1"}, stores, queue, nil, logger)
	require.NoError(t, err)

	assert.IsType(t, &calendarsync.LogBridge{}, deps.Bridge)
	assert.Same(t, queue, deps.Queue)
	assert.NotNil(t, deps.Publisher)
	assert.NotEmpty(t, deps.Options)
	assert.Equal(t, 30*time.Second, deps.ReconcileInterval)
	assert.Equal(t, time.Minute, deps.ReconcileGrace)
}
