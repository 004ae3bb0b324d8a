// Package notify dispatches booking confirmations and reminder requests after commit.
// Dispatch never blocks or fails the booking that triggered it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Confirmation is the payload handed to a Delivery.
type Confirmation struct {
	AppointmentID    string    `json:"appointment_id"`
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	ContactEmail     string    `json:"contact_email,omitempty"`
	ContactPhone     string    `json:"contact_phone,omitempty"`
	Address          string    `json:"address,omitempty"`
	CustomerID       string    `json:"customer_id"`
	CustomerName     string    `json:"customer_name"`
	CustomerEmail    string    `json:"customer_email"`
	CustomerPhone    string    `json:"customer_phone,omitempty"`
	ServiceName      string    `json:"service_name"`
	Title            string    `json:"title,omitempty"`
	StartTime        time.Time `json:"start_time"`
	LocalStart       string    `json:"local_start"`
	TimeZone         string    `json:"time_zone"`
	DurationMinutes  int       `json:"duration_minutes"`
	Fee              int64     `json:"fee"`
	Currency         string    `json:"currency,omitempty"`
}

// Delivery is the external collaborator. ScheduleReminder must not block until remindAt.
type Delivery interface {
	SendConfirmation(ctx context.Context, c Confirmation) error
	ScheduleReminder(ctx context.Context, c Confirmation, remindAt time.Time) error
}

type TriggerConfig struct {
	// Leads are how long before the appointment each reminder fires.
	Leads   []time.Duration
	Timeout time.Duration
}

type Trigger struct {
	delivery Delivery
	cfg      TriggerConfig
	logger   *slog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewTrigger(delivery Delivery, cfg TriggerConfig, logger *slog.Logger) *Trigger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Trigger{delivery: delivery, cfg: cfg, logger: logger, now: time.Now}
}

// AppointmentBooked returns immediately; delivery runs on its own goroutine detached from
// the request's cancellation.
func (t *Trigger) AppointmentBooked(ctx context.Context, c Confirmation) {
	bg := context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(bg, t.cfg.Timeout)
		defer cancel()
		t.dispatch(ctx, c)
	}()
}

func (t *Trigger) dispatch(ctx context.Context, c Confirmation) {
	defer func() {
		if rec := recover(); rec != nil {
			t.logger.Error("notification panic", "appointment_id", c.AppointmentID, "panic", rec)
		}
	}()

	if err := t.delivery.SendConfirmation(ctx, c); err != nil {
		t.logger.Error("confirmation delivery failed", "err", err,
			"appointment_id", c.AppointmentID, "organization_id", c.OrganizationID)
	}

	now := t.now()
	for _, lead := range t.cfg.Leads {
		remindAt := c.StartTime.Add(-lead)
		if !remindAt.After(now) {
			continue
		}
		if err := t.delivery.ScheduleReminder(ctx, c, remindAt); err != nil {
			t.logger.Error("reminder scheduling failed", "err", err,
				"appointment_id", c.AppointmentID, "remind_at", remindAt)
		}
	}
}

// Wait blocks until in-flight dispatches finish. Used on shutdown and in tests.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// ParseLeads turns minute values into durations, skipping non-positive entries.
func ParseLeads(minutes []int) []time.Duration {
	out := make([]time.Duration, 0, len(minutes))
	for _, m := range minutes {
		if m > 0 {
			out = append(out, time.Duration(m)*time.Minute)
		}
	}
	return out
}
