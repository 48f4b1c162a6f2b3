// Package admission decides whether a booking attempt is accepted.
//
// Every admission re-derives the slot from the schedule, the service and the
// current bookings inside the booking store's per-date serialization
// boundary, so two attempts for overlapping intervals on one date can never
// both commit.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// CalendarPublisher enqueues calendar work after a booking commits.
type CalendarPublisher interface {
	EnqueueCreate(ctx context.Context, bookingID uuid.UUID) error
	EnqueueDelete(ctx context.Context, bookingID uuid.UUID, eventID string) error
}

// Controller admits, confirms and cancels bookings.
type Controller struct {
	services  availability.ServiceLookup
	schedules schedule.Store
	store     bookings.Store
	calendar  CalendarPublisher
	policy    availability.Policy
	now       func() time.Time
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewController wires a Controller. calendar may be nil to disable sync.
func NewController(services availability.ServiceLookup, schedules schedule.Store, store bookings.Store, calendar CalendarPublisher, policy availability.Policy, logger *logging.Logger) *Controller {
	if services == nil || schedules == nil || store == nil {
		panic("admission: services, schedules and store are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		services:  services,
		schedules: schedules,
		store:     store,
		calendar:  calendar,
		policy:    policy,
		now:       time.Now,
		logger:    logger,
		tracer:    otel.Tracer("clinic.internal.admission"),
	}
}

// WithClock overrides the time source.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	if now != nil {
		c.now = now
	}
	return c
}

// WithMetrics attaches prometheus metrics.
func (c *Controller) WithMetrics(m *metrics.BookingMetrics) *Controller {
	c.metrics = m
	return c
}

// CreateBooking admits req as a pending booking or rejects it. Conflicts and
// policy violations wrap bookings.ErrSlotUnavailable. The calendar job is
// published after commit and never affects the outcome.
func (c *Controller) CreateBooking(ctx context.Context, req Request) (*bookings.Booking, error) {
	ctx, span := c.tracer.Start(ctx, "admission.create_booking")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("service.id", req.ServiceID),
		attribute.String("booking.date", req.Date),
		attribute.String("booking.time", req.StartTime),
	)

	booking, err := c.admit(ctx, req)
	c.metrics.ObserveAdmission(admissionOutcome(err))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, bookings.ErrSlotUnavailable) {
			c.logger.Info("booking rejected", "service_id", req.ServiceID, "date", req.Date, "time", req.StartTime, "reason", err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.id", booking.ID.String()))

	c.logger.Info("booking admitted",
		"booking_id", booking.ID,
		"service_id", booking.ServiceID,
		"date", booking.Date,
		"start", booking.StartTime(),
		"end", booking.EndTime(),
	)
	c.publishCreate(ctx, booking.ID)
	return booking, nil
}

func (c *Controller) admit(ctx context.Context, req Request) (*bookings.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	day, err := bookings.ParseDate(req.Date, c.policy.Loc())
	if err != nil {
		return nil, err
	}
	start, err := bookings.ParseClock(req.StartTime)
	if err != nil {
		return nil, bookings.Invalid("bookingTime", "must be HH:MM")
	}
	svc, err := c.services.Get(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, catalog.ErrServiceNotFound
	}

	booking := &bookings.Booking{
		ServiceID:        svc.ID,
		Date:             day.Format(bookings.DateLayout),
		StartMinute:      start,
		EndMinute:        start + svc.DurationMinutes,
		Patient:          req.Patient,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
	}

	// Runs inside the store's per-date boundary with the bookings that
	// currently occupy the date.
	check := func(existing []bookings.Booking) error {
		window, err := schedule.WindowFor(ctx, c.schedules, day)
		if errors.Is(err, bookings.ErrScheduleClosed) {
			return fmt.Errorf("admission: %s: %w: %w", booking.Date, bookings.ErrSlotUnavailable, bookings.ErrScheduleClosed)
		}
		if err != nil {
			return err
		}
		return availability.CheckCandidate(availability.Input{
			Date:     day,
			Window:   window,
			Duration: svc.DurationMinutes,
			Interval: c.policy.SlotInterval,
			Booked:   existing,
			Now:      c.now(),
			LeadTime: c.policy.LeadTime,
		}, start)
	}

	if err := c.store.Reserve(ctx, booking, check); err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelBooking frees the booking's interval. A synced booking gets its
// calendar event deleted asynchronously.
func (c *Controller) CancelBooking(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	ctx, span := c.tracer.Start(ctx, "admission.cancel_booking")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", id.String()))

	booking, err := c.store.Cancel(ctx, id)
	if err != nil {
		span.RecordError(err)
		c.metrics.ObserveCancellation(admissionOutcome(err))
		return nil, err
	}
	c.metrics.ObserveCancellation("cancelled")
	c.logger.Info("booking cancelled", "booking_id", id, "date", booking.Date, "start", booking.StartTime())

	if booking.SyncStatus == bookings.SyncSynced && booking.ExternalEventID != "" && c.calendar != nil {
		if err := c.calendar.EnqueueDelete(ctx, booking.ID, booking.ExternalEventID); err != nil {
			c.logger.Warn("failed to enqueue calendar delete", "error", err, "booking_id", id, "event_id", booking.ExternalEventID)
		}
	}
	return booking, nil
}

// ConfirmBooking moves a pending booking to confirmed. Confirming twice is a no-op.
func (c *Controller) ConfirmBooking(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	ctx, span := c.tracer.Start(ctx, "admission.confirm_booking")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", id.String()))

	booking, err := c.store.Confirm(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	c.logger.Info("booking confirmed", "booking_id", id)
	return booking, nil
}

// ResyncBooking queues a fresh calendar create for an active booking whose
// sync failed or never ran. The new job gets a full retry budget.
func (c *Controller) ResyncBooking(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	booking, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.Active() {
		return nil, fmt.Errorf("admission: resync %s: %w", id, bookings.ErrNotFound)
	}
	if booking.SyncStatus == bookings.SyncSynced {
		return nil, bookings.Invalid("syncStatus", "booking is already synced")
	}
	if c.calendar == nil {
		return nil, fmt.Errorf("admission: resync %s: calendar sync is disabled", id)
	}
	if err := c.calendar.EnqueueCreate(ctx, booking.ID); err != nil {
		return nil, fmt.Errorf("admission: resync %s: %w", id, err)
	}
	c.logger.Info("calendar resync queued", "booking_id", id, "previous_attempts", booking.SyncAttempts)
	return booking, nil
}

// GetBooking returns one booking.
func (c *Controller) GetBooking(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	return c.store.Get(ctx, id)
}

func (c *Controller) publishCreate(ctx context.Context, id uuid.UUID) {
	if c.calendar == nil {
		return
	}
	// the reconciler picks the booking up if this publish is lost
	if err := c.calendar.EnqueueCreate(context.WithoutCancel(ctx), id); err != nil {
		c.logger.Warn("failed to enqueue calendar sync", "error", err, "booking_id", id)
	}
}

func admissionOutcome(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, bookings.ErrSlotUnavailable):
		return "conflict"
	case errors.Is(err, bookings.ErrValidation):
		return "invalid"
	case errors.Is(err, bookings.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
