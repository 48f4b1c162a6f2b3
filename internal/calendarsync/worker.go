package calendarsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// SyncStore is the part of the booking store the worker updates.
type SyncStore interface {
	Get(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
	MarkSynced(ctx context.Context, id uuid.UUID, eventID string, attempts int) error
	MarkSyncFailed(ctx context.Context, id uuid.UUID, attempts int, reason string) error
	ClearExternalEvent(ctx context.Context, id uuid.UUID) error
}

// StaffAlerter is told when a booking's calendar sync is given up on.
type StaffAlerter interface {
	AlertSyncExhausted(ctx context.Context, booking bookings.Booking, cause error) error
}

// Worker consumes calendar jobs from the queue and calls the bridge.
type Worker struct {
	bridge  Bridge
	queue   Queue
	store   SyncStore
	jobs    JobRecorder
	alerter StaffAlerter
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	tracer  trace.Tracer

	cfg     workerConfig
	wg      sync.WaitGroup
	creates bookingLocks
}

// bookingLocks serializes create jobs per booking so a duplicate job waits
// for the first and then sees the booking synced.
type bookingLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*bookingLock
}

type bookingLock struct {
	mu   sync.Mutex
	refs int
}

func (l *bookingLocks) lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*bookingLock)
	}
	entry, ok := l.locks[id]
	if !ok {
		entry = &bookingLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	callTimeout      time.Duration
	maxAttempts      int
	baseDelay        time.Duration
	maxDelay         time.Duration
	jobs             JobRecorder
	alerter          StaffAlerter
	metrics          *metrics.BookingMetrics
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5

	defaultCallTimeout = 5 * time.Second
	defaultMaxAttempts = 4
	defaultBaseDelay   = 2 * time.Second
	defaultMaxDelay    = 5 * time.Minute
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithCallTimeout bounds each bridge call.
func WithCallTimeout(timeout time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if timeout > 0 {
			cfg.callTimeout = timeout
		}
	}
}

// WithRetryPolicy sets the attempt budget and the exponential backoff bounds.
func WithRetryPolicy(maxAttempts int, base, max time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if maxAttempts > 0 {
			cfg.maxAttempts = maxAttempts
		}
		if base > 0 {
			cfg.baseDelay = base
		}
		if max > 0 {
			cfg.maxDelay = max
		}
	}
}

// WithJobRecorder persists job progress.
func WithJobRecorder(jobs JobRecorder) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.jobs = jobs
	}
}

// WithStaffAlerter wires the alert sent when retries run out.
func WithStaffAlerter(alerter StaffAlerter) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.alerter = alerter
	}
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *metrics.BookingMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker constructs a calendar worker.
func NewWorker(bridge Bridge, queue Queue, store SyncStore, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if bridge == nil {
		panic("calendarsync: bridge cannot be nil")
	}
	if queue == nil {
		panic("calendarsync: queue cannot be nil")
	}
	if store == nil {
		panic("calendarsync: booking store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		callTimeout:      defaultCallTimeout,
		maxAttempts:      defaultMaxAttempts,
		baseDelay:        defaultBaseDelay,
		maxDelay:         defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		bridge:  bridge,
		queue:   queue,
		store:   store,
		jobs:    cfg.jobs,
		alerter: cfg.alerter,
		metrics: cfg.metrics,
		logger:  logger,
		tracer:  otel.Tracer("clinic.internal.calendarsync"),
		cfg:     cfg,
	}
}

// Start launches the worker goroutines.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("calendar worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("calendar worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive calendar jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	defer w.deleteMessage(context.Background(), msg.ReceiptHandle)

	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode calendar job", "error", err, "msg_id", msg.ID)
		return
	}
	if payload.Attempt <= 0 {
		payload.Attempt = 1
	}

	ctx, span := w.tracer.Start(ctx, "calendarsync.handle_job")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", payload.ID),
		attribute.String("job.kind", string(payload.Kind)),
		attribute.String("booking.id", payload.BookingID.String()),
		attribute.Int("job.attempt", payload.Attempt),
	)

	switch payload.Kind {
	case jobCreate:
		w.handleCreate(ctx, payload)
	case jobDelete:
		w.handleDelete(ctx, payload)
	default:
		w.logger.Warn("unknown calendar job kind", "kind", payload.Kind, "job_id", payload.ID)
	}
}

func (w *Worker) handleCreate(ctx context.Context, payload queuePayload) {
	unlock := w.creates.lock(payload.BookingID)
	defer unlock()

	booking, err := w.store.Get(ctx, payload.BookingID)
	if errors.Is(err, bookings.ErrNotFound) {
		w.logger.Warn("calendar job for unknown booking dropped", "booking_id", payload.BookingID)
		return
	}
	if err != nil {
		w.logger.Error("failed to load booking for calendar sync", "error", err, "booking_id", payload.BookingID)
		w.retryStoreFailure(ctx, payload, err)
		return
	}
	if !booking.Active() || booking.SyncStatus == bookings.SyncSynced {
		w.logger.Debug("calendar create skipped", "booking_id", booking.ID, "status", booking.Status, "sync_status", booking.SyncStatus)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.callTimeout)
	eventID, err := w.bridge.CreateEvent(callCtx, *booking)
	cancel()

	if err == nil {
		w.metrics.ObserveCalendarCall(string(jobCreate), "ok")
		if err := w.store.MarkSynced(ctx, booking.ID, eventID, payload.Attempt); err != nil {
			// the event exists; the retry re-inserts the same id and the bridge reports it as created
			w.logger.Error("failed to record calendar sync", "error", err, "booking_id", booking.ID, "event_id", eventID)
			w.retryStoreFailure(ctx, payload, err)
			return
		}
		w.metrics.ObserveCalendarSettled(string(jobCreate), "synced", payload.Attempt)
		w.recordCompleted(ctx, payload, eventID)
		w.logger.Info("booking synced to calendar", "booking_id", booking.ID, "event_id", eventID, "attempt", payload.Attempt)
		return
	}

	w.metrics.ObserveCalendarCall(string(jobCreate), "failed")
	if payload.Attempt >= w.cfg.maxAttempts {
		w.giveUp(ctx, payload, *booking, err)
		return
	}

	if markErr := w.store.MarkSyncFailed(ctx, booking.ID, payload.Attempt, err.Error()); markErr != nil {
		w.logger.Error("failed to record calendar sync failure", "error", markErr, "booking_id", booking.ID)
	}
	w.recordRetrying(ctx, payload, err)
	w.logger.Warn("calendar sync failed, retrying",
		"error", err,
		"booking_id", booking.ID,
		"attempt", payload.Attempt,
		"max_attempts", w.cfg.maxAttempts,
	)
	w.requeue(ctx, payload, payload.Attempt+1)
}

// retryStoreFailure requeues a job the booking store could not serve. These
// retries spend the job's attempts like bridge failures do.
func (w *Worker) retryStoreFailure(ctx context.Context, payload queuePayload, cause error) {
	if payload.Attempt >= w.cfg.maxAttempts {
		reason := fmt.Sprintf("booking store unavailable after %d attempts: %v", payload.Attempt, cause)
		w.metrics.ObserveCalendarSettled(string(payload.Kind), "exhausted", payload.Attempt)
		if w.jobs != nil {
			if err := w.jobs.MarkFailed(ctx, payload.ID, payload.Attempt, reason); err != nil {
				w.logger.Warn("failed to update calendar job", "error", err, "job_id", payload.ID)
			}
		}
		w.logger.Error("calendar job abandoned", "booking_id", payload.BookingID, "attempts", payload.Attempt, "error", cause)
		return
	}
	w.recordRetrying(ctx, payload, cause)
	w.requeue(ctx, payload, payload.Attempt+1)
}

func (w *Worker) giveUp(ctx context.Context, payload queuePayload, booking bookings.Booking, cause error) {
	reason := fmt.Sprintf("%s after %d attempts: %v", bookings.ErrExternalSyncFailed, payload.Attempt, cause)
	if err := w.store.MarkSyncFailed(ctx, booking.ID, payload.Attempt, reason); err != nil {
		w.logger.Error("failed to record calendar sync failure", "error", err, "booking_id", booking.ID)
	}
	w.metrics.ObserveCalendarSettled(string(payload.Kind), "exhausted", payload.Attempt)
	if w.jobs != nil {
		if err := w.jobs.MarkFailed(ctx, payload.ID, payload.Attempt, reason); err != nil {
			w.logger.Warn("failed to update calendar job", "error", err, "job_id", payload.ID)
		}
	}
	w.logger.Error("calendar sync retries exhausted", "booking_id", booking.ID, "attempts", payload.Attempt, "error", cause)

	if w.alerter != nil {
		booking.SyncStatus = bookings.SyncFailed
		booking.SyncAttempts = payload.Attempt
		booking.LastSyncError = reason
		if err := w.alerter.AlertSyncExhausted(ctx, booking, fmt.Errorf("%w: %v", bookings.ErrExternalSyncFailed, cause)); err != nil {
			w.logger.Warn("failed to alert staff about calendar sync", "error", err, "booking_id", booking.ID)
		}
	}
}

func (w *Worker) handleDelete(ctx context.Context, payload queuePayload) {
	if payload.EventID == "" {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.callTimeout)
	err := w.bridge.DeleteEvent(callCtx, payload.EventID)
	cancel()

	if err == nil {
		w.metrics.ObserveCalendarCall(string(jobDelete), "ok")
		w.metrics.ObserveCalendarSettled(string(jobDelete), "deleted", payload.Attempt)
		if err := w.store.ClearExternalEvent(ctx, payload.BookingID); err != nil && !errors.Is(err, bookings.ErrNotFound) {
			w.logger.Error("failed to clear external event", "error", err, "booking_id", payload.BookingID)
		}
		w.recordCompleted(ctx, payload, payload.EventID)
		w.logger.Info("calendar event deleted", "booking_id", payload.BookingID, "event_id", payload.EventID)
		return
	}

	w.metrics.ObserveCalendarCall(string(jobDelete), "failed")
	if payload.Attempt >= w.cfg.maxAttempts {
		reason := fmt.Sprintf("delete event %s: %s after %d attempts: %v", payload.EventID, bookings.ErrExternalSyncFailed, payload.Attempt, err)
		// the booking stays cancelled; marking it failed stops the reconciler from re-queueing it
		if markErr := w.store.MarkSyncFailed(ctx, payload.BookingID, payload.Attempt, reason); markErr != nil {
			w.logger.Error("failed to record calendar delete failure", "error", markErr, "booking_id", payload.BookingID)
		}
		w.metrics.ObserveCalendarSettled(string(jobDelete), "exhausted", payload.Attempt)
		if w.jobs != nil {
			if err := w.jobs.MarkFailed(ctx, payload.ID, payload.Attempt, reason); err != nil {
				w.logger.Warn("failed to update calendar job", "error", err, "job_id", payload.ID)
			}
		}
		w.logger.Error("calendar delete retries exhausted", "booking_id", payload.BookingID, "event_id", payload.EventID, "error", err)
		return
	}

	w.recordRetrying(ctx, payload, err)
	w.logger.Warn("calendar delete failed, retrying", "error", err, "event_id", payload.EventID, "attempt", payload.Attempt)
	w.requeue(ctx, payload, payload.Attempt+1)
}

func (w *Worker) requeue(ctx context.Context, payload queuePayload, attempt int) {
	delay := w.nextDelay(payload.Attempt)
	payload.Attempt = attempt
	_, body, err := encodePayload(payload)
	if err != nil {
		w.logger.Error("failed to encode calendar retry", "error", err, "job_id", payload.ID)
		return
	}
	if err := w.queue.Send(ctx, body, delay); err != nil {
		w.logger.Error("failed to requeue calendar job", "error", err, "job_id", payload.ID, "booking_id", payload.BookingID)
	}
}

// nextDelay is base * 2^(attempt-1), capped at the configured maximum.
func (w *Worker) nextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := w.cfg.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= w.cfg.maxDelay {
			return w.cfg.maxDelay
		}
	}
	if delay > w.cfg.maxDelay {
		return w.cfg.maxDelay
	}
	return delay
}

func (w *Worker) recordCompleted(ctx context.Context, payload queuePayload, eventID string) {
	if w.jobs == nil {
		return
	}
	if err := w.jobs.MarkCompleted(ctx, payload.ID, payload.Attempt, eventID); err != nil {
		w.logger.Warn("failed to update calendar job", "error", err, "job_id", payload.ID)
	}
}

func (w *Worker) recordRetrying(ctx context.Context, payload queuePayload, cause error) {
	if w.jobs == nil {
		return
	}
	if err := w.jobs.MarkRetrying(ctx, payload.ID, payload.Attempt, cause.Error()); err != nil {
		w.logger.Warn("failed to update calendar job", "error", err, "job_id", payload.ID)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete calendar job", "error", err)
	}
}
