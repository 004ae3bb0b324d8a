package notify

import (
	"context"
	"log/slog"
	"time"
)

// LogDelivery only logs payloads. Development use.
type LogDelivery struct {
	logger *slog.Logger
}

func NewLogDelivery(logger *slog.Logger) *LogDelivery {
	return &LogDelivery{logger: logger}
}

func (d *LogDelivery) SendConfirmation(ctx context.Context, c Confirmation) error {
	d.logger.InfoContext(ctx, "booking confirmation", "appointment_id", c.AppointmentID,
		"customer_email", c.CustomerEmail, "local_start", c.LocalStart)
	return nil
}

func (d *LogDelivery) ScheduleReminder(ctx context.Context, c Confirmation, remindAt time.Time) error {
	d.logger.InfoContext(ctx, "reminder scheduled", "appointment_id", c.AppointmentID,
		"remind_at", remindAt.UTC().Format(time.RFC3339))
	return nil
}
