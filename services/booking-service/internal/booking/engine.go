// Package booking is the availability and booking engine: slot listing, transactional
// reservation and appointment status transitions.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/obstruction"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/temporal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type SlotQuery struct {
	OrganizationID string `validate:"required"`
	ServiceID      string `validate:"required"`
	Assignee       model.Owner
	// Date is the calendar-local day, YYYY-MM-DD.
	Date string `validate:"required"`
}

type CustomerInput struct {
	Email  string            `validate:"omitempty,email,max=254"`
	Name   string            `validate:"max=200"`
	Phone  string            `validate:"max=40"`
	Fields map[string]string `validate:"max=50,dive,keys,max=64,endkeys,max=1024"`
}

type BookRequest struct {
	OrganizationID string `validate:"required"`
	ServiceID      string `validate:"required"`
	Assignee       model.Owner
	StartTime      time.Time `validate:"required"`
	// CustomerID books for an existing customer; otherwise Customer.Email is required.
	CustomerID  string
	Customer    CustomerInput
	Title       string `validate:"max=200"`
	Description string `validate:"max=2000"`
}

type BookResult struct {
	AppointmentID string
	CustomerID    string
	StartTime     time.Time
	EndTime       time.Time
	Status        model.Status
}

type Engine struct {
	store    Store
	resolver *calendar.Resolver
	notifier Notifier
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Engine)

// WithClock overrides the engine's notion of "now".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, notifier Notifier, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		resolver: calendar.NewResolver(store),
		notifier: notifier,
		logger:   logger,
		validate: newValidator(),
		tracer:   otel.Tracer("booking-service/booking"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListAvailableSlots is read-only. An organization without any calendar has no availability.
func (e *Engine) ListAvailableSlots(ctx context.Context, q SlotQuery) (slots []availability.Slot, err error) {
	ctx, span := e.tracer.Start(ctx, "booking.list_slots", trace.WithAttributes(
		attribute.String("organization.id", q.OrganizationID),
		attribute.String("service.id", q.ServiceID),
		attribute.String("assignee.id", q.Assignee.ID),
		attribute.String("date", q.Date),
	))
	defer func() { endSpan(span, err) }()

	if err := checkStruct(e.validate, q); err != nil {
		return nil, err
	}
	date, err := temporal.ParseDate(q.Date)
	if err != nil {
		return nil, errs.Invalid("date", "must be YYYY-MM-DD")
	}
	svc, err := e.store.GetService(ctx, q.OrganizationID, q.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc.DurationMinutes <= 0 {
		return nil, errs.Invalid("service.duration_minutes", "must be positive")
	}

	owner := ownerOrOrganization(q.OrganizationID, q.Assignee)
	cal, err := e.resolver.Resolve(ctx, q.OrganizationID, owner)
	if errors.Is(err, errs.ErrCalendarNotFound) {
		return []availability.Slot{}, nil
	}
	if err != nil {
		return nil, err
	}

	busy, err := obstruction.Build(ctx, e.store, q.OrganizationID, owner, availability.ObstructionRange(cal, date), cal.BufferMinutes)
	if err != nil {
		return nil, err
	}

	slots = availability.Generate(availability.Request{
		Calendar:        cal,
		Date:            date,
		DurationMinutes: svc.DurationMinutes,
		Busy:            busy,
		Now:             e.now().UTC(),
	})
	if slots == nil {
		slots = []availability.Slot{}
	}
	span.SetAttributes(attribute.Int("slots.count", len(slots)))
	return slots, nil
}

// BookAppointment re-verifies the chosen interval against a fresh obstruction index inside the
// store's reservation and commits a PENDING appointment. Losing a race yields errs.ErrSlotUnavailable.
func (e *Engine) BookAppointment(ctx context.Context, req BookRequest) (res BookResult, err error) {
	ctx, span := e.tracer.Start(ctx, "booking.book", trace.WithAttributes(
		attribute.String("organization.id", req.OrganizationID),
		attribute.String("service.id", req.ServiceID),
		attribute.String("assignee.id", req.Assignee.ID),
	))
	defer func() { endSpan(span, err) }()

	if err := checkStruct(e.validate, req); err != nil {
		return BookResult{}, err
	}
	if req.CustomerID == "" && strings.TrimSpace(req.Customer.Email) == "" {
		return BookResult{}, errs.Invalid("customer.email", "is required")
	}

	org, err := e.store.GetOrganization(ctx, req.OrganizationID)
	if err != nil {
		return BookResult{}, err
	}
	svc, err := e.store.GetService(ctx, req.OrganizationID, req.ServiceID)
	if err != nil {
		return BookResult{}, err
	}
	if svc.DurationMinutes <= 0 {
		return BookResult{}, errs.Invalid("service.duration_minutes", "must be positive")
	}
	owner := ownerOrOrganization(req.OrganizationID, req.Assignee)
	cal, err := e.resolver.Resolve(ctx, req.OrganizationID, owner)
	if errors.Is(err, errs.ErrCalendarNotFound) {
		return BookResult{}, errs.Invalid("assignee", "has no calendar")
	}
	if err != nil {
		return BookResult{}, err
	}

	now := e.now().UTC()
	start := req.StartTime.UTC()
	if start.Before(now) {
		return BookResult{}, fmt.Errorf("start time is in the past: %w", errs.ErrSlotUnavailable)
	}
	if !availability.WithinWorkingHours(cal, start, svc.DurationMinutes) {
		return BookResult{}, fmt.Errorf("outside working hours: %w", errs.ErrSlotUnavailable)
	}

	customer, err := e.resolveCustomer(ctx, req, now)
	if err != nil {
		return BookResult{}, err
	}

	appt := model.Appointment{
		ID:              uuid.NewString(),
		OrganizationID:  req.OrganizationID,
		Assignee:        owner,
		CustomerID:      customer.ID,
		ServiceID:       svc.ID,
		Title:           strings.TrimSpace(req.Title),
		Description:     strings.TrimSpace(req.Description),
		StartTime:       start,
		DurationMinutes: svc.DurationMinutes,
		BufferMinutes:   cal.BufferMinutes,
		Fee:             svc.Price,
		Status:          model.StatusPending,
		CreatedAt:       now,
	}
	interval := temporal.Interval{Start: appt.StartTime, End: appt.EndTime()}

	err = e.store.Reserve(ctx, appt, func(ctx context.Context, src obstruction.Source) error {
		busy, err := obstruction.Build(ctx, src, req.OrganizationID, owner, interval.Pad(cal.BufferMinutes), cal.BufferMinutes)
		if err != nil {
			return err
		}
		if busy.Intersects(interval) {
			return errs.ErrSlotUnavailable
		}
		return nil
	})
	if err != nil {
		return BookResult{}, err
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID))

	if e.notifier != nil {
		e.notifier.AppointmentBooked(ctx, confirmationFor(org, svc, customer, appt, cal))
	}
	return BookResult{
		AppointmentID: appt.ID,
		CustomerID:    customer.ID,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime(),
		Status:        appt.Status,
	}, nil
}

func (e *Engine) resolveCustomer(ctx context.Context, req BookRequest, now time.Time) (model.Customer, error) {
	if req.CustomerID != "" {
		return e.store.GetCustomer(ctx, req.OrganizationID, req.CustomerID)
	}
	return e.store.FindOrCreateCustomer(ctx, model.Customer{
		ID:             uuid.NewString(),
		OrganizationID: req.OrganizationID,
		Email:          NormalizeEmail(req.Customer.Email),
		Name:           strings.TrimSpace(req.Customer.Name),
		Phone:          strings.TrimSpace(req.Customer.Phone),
		Fields:         req.Customer.Fields,
		CreatedAt:      now,
	})
}

func (e *Engine) CancelAppointment(ctx context.Context, organizationID, appointmentID, reason string) (model.Appointment, error) {
	return e.transition(ctx, organizationID, appointmentID, model.StatusCancelled, strings.TrimSpace(reason))
}

func (e *Engine) CompleteAppointment(ctx context.Context, organizationID, appointmentID string) (model.Appointment, error) {
	return e.transition(ctx, organizationID, appointmentID, model.StatusCompleted, "")
}

// transition moves a PENDING appointment to a terminal status. Repeating the same
// transition returns the current state unchanged.
func (e *Engine) transition(ctx context.Context, organizationID, appointmentID string, to model.Status, reason string) (model.Appointment, error) {
	if organizationID == "" {
		return model.Appointment{}, errs.Invalid("organization_id", "is required")
	}
	if appointmentID == "" {
		return model.Appointment{}, errs.Invalid("appointment_id", "is required")
	}
	now := e.now().UTC()
	appt, err := e.store.TransitionAppointment(ctx, organizationID, appointmentID, func(a *model.Appointment) (bool, error) {
		if a.Status == to {
			return false, nil
		}
		if a.Status.Terminal() {
			return false, errs.Invalid("status", fmt.Sprintf("cannot change %s appointment to %s", a.Status, to))
		}
		a.Status = to
		switch to {
		case model.StatusCancelled:
			a.CancelledAt = &now
			a.CancelReason = reason
		case model.StatusCompleted:
			a.CompletedAt = &now
		}
		return true, nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	e.logger.InfoContext(ctx, "appointment status changed", "appointment_id", appt.ID,
		"organization_id", organizationID, "status", appt.Status)
	return appt, nil
}

// ListAppointments returns the newest appointments first.
func (e *Engine) ListAppointments(ctx context.Context, organizationID string, limit int) ([]model.Appointment, error) {
	if organizationID == "" {
		return nil, errs.Invalid("organization_id", "is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return e.store.ListAppointments(ctx, organizationID, limit)
}

func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func ownerOrOrganization(organizationID string, assignee model.Owner) model.Owner {
	if assignee.IsZero() {
		return model.Owner{Type: model.OwnerOrganization, ID: organizationID}
	}
	if assignee.Type == "" {
		assignee.Type = model.OwnerMember
	}
	return assignee
}

func confirmationFor(org model.Organization, svc model.Service, c model.Customer, a model.Appointment, cal calendar.Resolved) notify.Confirmation {
	return notify.Confirmation{
		AppointmentID:    a.ID,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		ContactEmail:     org.ContactEmail,
		ContactPhone:     org.ContactPhone,
		Address:          org.Address,
		CustomerID:       c.ID,
		CustomerName:     c.Name,
		CustomerEmail:    c.Email,
		CustomerPhone:    c.Phone,
		ServiceName:      svc.Name,
		Title:            a.Title,
		StartTime:        a.StartTime,
		LocalStart:       a.StartTime.In(cal.Location).Format("Mon, 02 Jan 2006 15:04 MST"),
		TimeZone:         cal.Location.String(),
		DurationMinutes:  a.DurationMinutes,
		Fee:              a.Fee,
		Currency:         org.Currency,
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !isCallerError(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func isCallerError(err error) bool {
	return errors.Is(err, errs.ErrValidation) || errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrSlotUnavailable)
}
