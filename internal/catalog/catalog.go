// Package catalog owns the services patients can book.
package catalog

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// UsageCounter reports how many bookings reference a service.
type UsageCounter interface {
	CountByService(ctx context.Context, serviceID int64) (int, error)
}

// Catalog applies service edit policy on top of a Repository.
type Catalog struct {
	repo   Repository
	usage  UsageCounter
	logger *logging.Logger
}

// New creates a Catalog. usage may be nil when no bookings store is wired.
func New(repo Repository, usage UsageCounter, logger *logging.Logger) *Catalog {
	if repo == nil {
		panic("catalog: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Catalog{repo: repo, usage: usage, logger: logger}
}

// Get resolves a service id.
func (c *Catalog) Get(ctx context.Context, id int64) (*Service, error) {
	return c.repo.Get(ctx, id)
}

// List returns services, optionally only bookable ones.
func (c *Catalog) List(ctx context.Context, activeOnly bool) ([]Service, error) {
	return c.repo.List(ctx, activeOnly)
}

// Create validates and stores a new active service.
func (c *Catalog) Create(ctx context.Context, req CreateServiceRequest) (*Service, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	svc := &Service{
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		PriceCents:      req.PriceCents,
		Category:        req.Category,
		Active:          true,
	}
	if err := c.repo.Create(ctx, svc); err != nil {
		return nil, err
	}
	c.logger.Info("service created", "service_id", svc.ID, "name", svc.Name, "duration_minutes", svc.DurationMinutes)
	return svc, nil
}

// Update applies a partial edit. Changing the duration of a service that
// bookings reference is rejected with ErrServiceInUse.
func (c *Catalog) Update(ctx context.Context, id int64, req UpdateServiceRequest) (*Service, error) {
	svc, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previousDuration := svc.DurationMinutes
	if err := req.apply(svc); err != nil {
		return nil, err
	}
	if svc.DurationMinutes != previousDuration && c.usage != nil {
		count, err := c.usage.CountByService(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("catalog: check service usage: %w", err)
		}
		if count > 0 {
			c.logger.Warn("service duration edit rejected", "service_id", id, "bookings", count)
			return nil, ErrServiceInUse
		}
	}
	if err := c.repo.Update(ctx, svc); err != nil {
		return nil, err
	}
	c.logger.Info("service updated", "service_id", id)
	return svc, nil
}
