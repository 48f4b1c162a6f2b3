package catalog

import (
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/internal/bookings"
)

// Service is a bookable treatment. Duration is fixed once bookings reference it.
type Service struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"durationMinutes"`
	PriceCents      int64     `json:"priceCents"`
	Category        string    `json:"category"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Duration returns the service length.
func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// CreateServiceRequest is the admin payload for a new service.
type CreateServiceRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"durationMinutes"`
	PriceCents      int64  `json:"priceCents"`
	Category        string `json:"category"`
}

// Validate checks the create payload.
func (r *CreateServiceRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return bookings.Invalid("name", "is required")
	}
	if r.DurationMinutes <= 0 {
		return bookings.Invalid("durationMinutes", "must be positive")
	}
	if r.DurationMinutes > 24*60 {
		return bookings.Invalid("durationMinutes", "must fit in a day")
	}
	if r.PriceCents < 0 {
		return bookings.Invalid("priceCents", "must not be negative")
	}
	return nil
}

// UpdateServiceRequest carries a partial update; nil fields are left unchanged.
type UpdateServiceRequest struct {
	Name            *string `json:"name,omitempty"`
	DurationMinutes *int    `json:"durationMinutes,omitempty"`
	PriceCents      *int64  `json:"priceCents,omitempty"`
	Category        *string `json:"category,omitempty"`
	Active          *bool   `json:"active,omitempty"`
}

func (r *UpdateServiceRequest) apply(svc *Service) error {
	if r.Name != nil {
		if strings.TrimSpace(*r.Name) == "" {
			return bookings.Invalid("name", "must not be empty")
		}
		svc.Name = *r.Name
	}
	if r.DurationMinutes != nil {
		if *r.DurationMinutes <= 0 || *r.DurationMinutes > 24*60 {
			return bookings.Invalid("durationMinutes", "must be between 1 and 1440")
		}
		svc.DurationMinutes = *r.DurationMinutes
	}
	if r.PriceCents != nil {
		if *r.PriceCents < 0 {
			return bookings.Invalid("priceCents", "must not be negative")
		}
		svc.PriceCents = *r.PriceCents
	}
	if r.Category != nil {
		svc.Category = *r.Category
	}
	if r.Active != nil {
		svc.Active = *r.Active
	}
	return nil
}
