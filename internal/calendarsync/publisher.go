package calendarsync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Publisher enqueues calendar jobs for asynchronous processing.
type Publisher struct {
	queue  Queue
	jobs   JobRecorder
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher. jobs may be nil.
func NewPublisher(queue Queue, jobs JobRecorder, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("calendarsync: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		jobs:   jobs,
		logger: logger,
	}
}

// EnqueueCreate publishes a job that creates the booking's external event.
func (p *Publisher) EnqueueCreate(ctx context.Context, bookingID uuid.UUID) error {
	return p.enqueue(ctx, queuePayload{Kind: jobCreate, BookingID: bookingID})
}

// EnqueueDelete publishes a job that deletes an external event.
func (p *Publisher) EnqueueDelete(ctx context.Context, bookingID uuid.UUID, eventID string) error {
	return p.enqueue(ctx, queuePayload{Kind: jobDelete, BookingID: bookingID, EventID: eventID})
}

func (p *Publisher) enqueue(ctx context.Context, payload queuePayload) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(payload)
	if err != nil {
		return err
	}

	if p.jobs != nil {
		record := &JobRecord{JobID: payload.ID, BookingID: payload.BookingID.String(), Kind: string(payload.Kind), EventID: payload.EventID}
		if err := p.jobs.PutPending(ctx, record); err != nil {
			p.logger.Warn("failed to record calendar job", "error", err, "job_id", payload.ID)
		}
	}

	if err := p.queue.Send(ctx, body, 0); err != nil {
		return fmt.Errorf("calendarsync: failed to enqueue job: %w", err)
	}

	p.logger.Debug("calendar job enqueued", "job_id", payload.ID, "kind", payload.Kind, "booking_id", payload.BookingID)
	return nil
}
