package catalog

import (
	"fmt"

	"github.com/wolfman30/clinic-booking/internal/bookings"
)

var (
	// ErrServiceNotFound is returned when a service id does not resolve.
	ErrServiceNotFound = fmt.Errorf("catalog: service %w", bookings.ErrNotFound)

	// ErrServiceInUse is returned when an edit would change the duration of a
	// service that bookings already reference.
	ErrServiceInUse = fmt.Errorf("catalog: duration is fixed once bookings reference the service: %w", bookings.ErrValidation)
)
