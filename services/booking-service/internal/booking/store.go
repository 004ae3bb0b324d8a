package booking

import (
	"context"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/obstruction"
)

// VerifyFunc re-checks availability against a source scoped to the reservation.
type VerifyFunc func(ctx context.Context, src obstruction.Source) error

// TransitionFunc mutates a locked appointment. Returning false leaves it untouched.
type TransitionFunc func(appt *model.Appointment) (changed bool, err error)

// Store is the entity store behind the engine. Lookups report missing rows as errs.ErrNotFound
// and store faults as errs.ErrTransientStore.
type Store interface {
	calendar.Store
	obstruction.Source

	GetService(ctx context.Context, organizationID, serviceID string) (model.Service, error)
	GetCustomer(ctx context.Context, organizationID, customerID string) (model.Customer, error)
	// FindOrCreateCustomer matches on (organization, case-folded email).
	FindOrCreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error)

	// Reserve runs verify and inserts appt atomically with respect to other reservations
	// for the same assignee. Overlap detected at commit is reported as errs.ErrSlotUnavailable.
	Reserve(ctx context.Context, appt model.Appointment, verify VerifyFunc) error

	GetAppointment(ctx context.Context, organizationID, appointmentID string) (model.Appointment, error)
	TransitionAppointment(ctx context.Context, organizationID, appointmentID string, fn TransitionFunc) (model.Appointment, error)
	ListAppointments(ctx context.Context, organizationID string, limit int) ([]model.Appointment, error)
}

// Notifier receives successful bookings. It must not block.
type Notifier interface {
	AppointmentBooked(ctx context.Context, c notify.Confirmation)
}
