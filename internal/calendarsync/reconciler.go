package calendarsync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// ReconcileStore lists bookings whose calendar state lags their booking state.
type ReconcileStore interface {
	ListUnsynced(ctx context.Context, cutoff time.Time, limit int) ([]bookings.Booking, error)
	ListOrphanedEvents(ctx context.Context, cutoff time.Time, limit int) ([]bookings.Booking, error)
}

// JobPublisher enqueues calendar jobs.
type JobPublisher interface {
	EnqueueCreate(ctx context.Context, bookingID uuid.UUID) error
	EnqueueDelete(ctx context.Context, bookingID uuid.UUID, eventID string) error
}

// Reconciler re-publishes calendar jobs that were never enqueued: bookings
// still not_attempted after the grace period, and cancelled bookings whose
// event was never deleted.
type Reconciler struct {
	store     ReconcileStore
	publisher JobPublisher
	logger    *logging.Logger
	interval  time.Duration
	grace     time.Duration
	batchSize int
	now       func() time.Time
}

// NewReconciler creates a reconciler with a one minute interval and a two
// minute grace period.
func NewReconciler(store ReconcileStore, publisher JobPublisher, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		store:     store,
		publisher: publisher,
		logger:    logger,
		interval:  time.Minute,
		grace:     2 * time.Minute,
		batchSize: 50,
		now:       time.Now,
	}
}

// WithInterval sets how often Run sweeps.
func (r *Reconciler) WithInterval(interval time.Duration) *Reconciler {
	if interval > 0 {
		r.interval = interval
	}
	return r
}

// WithGrace sets how old a booking must be before it is considered stuck.
func (r *Reconciler) WithGrace(grace time.Duration) *Reconciler {
	if grace >= 0 {
		r.grace = grace
	}
	return r
}

// WithBatchSize caps the bookings handled per sweep and kind.
func (r *Reconciler) WithBatchSize(size int) *Reconciler {
	if size > 0 {
		r.batchSize = size
	}
	return r
}

// WithClock overrides the time source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	if now != nil {
		r.now = now
	}
	return r
}

// Run sweeps until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	if r == nil || r.store == nil || r.publisher == nil {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("calendar reconciler started", "interval", r.interval, "grace", r.grace)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("calendar reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep enqueues one round of missing jobs and returns how many were published.
func (r *Reconciler) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.grace)
	published := 0

	unsynced, err := r.store.ListUnsynced(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("reconciler: list unsynced bookings failed", "error", err)
	}
	for _, b := range unsynced {
		if err := r.publisher.EnqueueCreate(ctx, b.ID); err != nil {
			r.logger.Warn("reconciler: enqueue create failed", "error", err, "booking_id", b.ID)
			continue
		}
		published++
	}

	orphans, err := r.store.ListOrphanedEvents(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("reconciler: list orphaned events failed", "error", err)
	}
	for _, b := range orphans {
		if err := r.publisher.EnqueueDelete(ctx, b.ID, b.ExternalEventID); err != nil {
			r.logger.Warn("reconciler: enqueue delete failed", "error", err, "booking_id", b.ID)
			continue
		}
		published++
	}

	if published > 0 {
		r.logger.Info("reconciler: calendar jobs republished", "count", published)
	}
	return published
}
