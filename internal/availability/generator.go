package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Policy carries the clinic-wide slot settings.
type Policy struct {
	Location     *time.Location
	LeadTime     time.Duration
	SlotInterval int
}

// Loc returns the clinic location, UTC when unset.
func (p Policy) Loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// ServiceLookup resolves services.
type ServiceLookup interface {
	Get(ctx context.Context, id int64) (*catalog.Service, error)
}

// BookingReader lists the bookings occupying a date.
type BookingReader interface {
	ListActiveByDate(ctx context.Context, date string) ([]bookings.Booking, error)
}

// Generator answers slot queries from the schedule and booking stores.
type Generator struct {
	services  ServiceLookup
	schedules schedule.Store
	bookings  BookingReader
	policy    Policy
	now       func() time.Time
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewGenerator wires a Generator.
func NewGenerator(services ServiceLookup, schedules schedule.Store, store BookingReader, policy Policy, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{
		services:  services,
		schedules: schedules,
		bookings:  store,
		policy:    policy,
		now:       time.Now,
		logger:    logger,
		tracer:    otel.Tracer("clinic.internal.availability"),
	}
}

// WithClock overrides the time source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	if now != nil {
		g.now = now
	}
	return g
}

// WithMetrics attaches prometheus metrics.
func (g *Generator) WithMetrics(m *metrics.BookingMetrics) *Generator {
	g.metrics = m
	return g
}

// GenerateSlots returns the open slots for serviceID on date (YYYY-MM-DD).
// An unknown service is bookings.ErrNotFound. A closed or past date is an
// empty result.
func (g *Generator) GenerateSlots(ctx context.Context, date string, serviceID int64) ([]Slot, error) {
	ctx, span := g.tracer.Start(ctx, "availability.generate_slots")
	defer span.End()
	span.SetAttributes(attribute.String("booking.date", date), attribute.Int64("service.id", serviceID))

	started := time.Now()
	slots, err := g.generate(ctx, date, serviceID)
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
	}
	g.metrics.ObserveSlotQuery(result, time.Since(started).Seconds())
	span.SetAttributes(attribute.Int("slots.count", len(slots)))
	return slots, err
}

func (g *Generator) generate(ctx context.Context, date string, serviceID int64) ([]Slot, error) {
	day, err := bookings.ParseDate(date, g.policy.Loc())
	if err != nil {
		return nil, err
	}
	svc, err := g.services.Get(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, catalog.ErrServiceNotFound
	}

	in := Input{
		Date:     day,
		Duration: svc.DurationMinutes,
		Interval: g.policy.SlotInterval,
		Now:      g.now(),
		LeadTime: g.policy.LeadTime,
	}
	if in.past() {
		return []Slot{}, nil
	}

	in.Window, err = schedule.WindowFor(ctx, g.schedules, day)
	if errors.Is(err, bookings.ErrScheduleClosed) {
		return []Slot{}, nil
	}
	if err != nil {
		return nil, err
	}

	in.Booked, err = g.bookings.ListActiveByDate(ctx, day.Format(bookings.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("availability: list bookings: %w", err)
	}
	slots := Generate(in)
	g.logger.Debug("slots generated", "date", date, "service_id", serviceID, "count", len(slots))
	return slots, nil
}
