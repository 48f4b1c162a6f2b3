package admission

import (
	"strings"

	"github.com/wolfman30/clinic-booking/internal/bookings"
)

// Request is a patient's booking attempt.
type Request struct {
	ServiceID        int64            `json:"serviceId"`
	Date             string           `json:"bookingDate"`
	StartTime        string           `json:"bookingTime"`
	Patient          bookings.Patient `json:"patientInfo"`
	PaymentMethod    string           `json:"paymentMethod"`
	PaymentReference string           `json:"paymentReference"`
}

// Validate checks the request shape. Slot validity is checked at admission.
func (r *Request) Validate() error {
	if r.ServiceID <= 0 {
		return bookings.Invalid("serviceId", "is required")
	}
	if strings.TrimSpace(r.Date) == "" {
		return bookings.Invalid("bookingDate", "is required")
	}
	if strings.TrimSpace(r.StartTime) == "" {
		return bookings.Invalid("bookingTime", "is required")
	}
	if err := r.Patient.Validate(); err != nil {
		return err
	}
	if len(r.PaymentReference) > 255 {
		return bookings.Invalid("paymentReference", "is too long")
	}
	return nil
}
