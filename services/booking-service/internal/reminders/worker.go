package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/email"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/sms"
	"github.com/robfig/cron/v3"
)

// AppointmentReader lets the worker drop reminders for appointments that are no longer pending.
type AppointmentReader interface {
	GetAppointment(ctx context.Context, organizationID, appointmentID string) (model.Appointment, error)
}

type WorkerConfig struct {
	// Spec is a robfig/cron schedule, e.g. "@every 30s".
	Spec      string
	BatchSize int
}

type Worker struct {
	queue  Queue
	appts  AppointmentReader
	mail   email.Sender
	sms    sms.Sender
	logger *slog.Logger
	cfg    WorkerConfig
	now    func() time.Time
}

func NewWorker(queue Queue, appts AppointmentReader, mail email.Sender, smsSender sms.Sender, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Spec == "" {
		cfg.Spec = "@every 30s"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if smsSender == nil {
		smsSender = sms.NewNoopSender()
	}
	return &Worker{queue: queue, appts: appts, mail: mail, sms: smsSender, logger: logger, cfg: cfg, now: time.Now}
}

// Run schedules sweeps until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.cfg.Spec, func() {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("reminder sweep failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("reminder schedule %q: %w", w.cfg.Spec, err)
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// RunOnce processes one batch of due reminders.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	return w.queue.ProcessDue(ctx, w.now().UTC(), w.cfg.BatchSize, w.send)
}

func (w *Worker) send(ctx context.Context, job Job) error {
	appt, err := w.appts.GetAppointment(ctx, job.OrganizationID, job.AppointmentID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if appt.Status != model.StatusPending {
		w.logger.Info("reminder skipped", "appointment_id", job.AppointmentID, "status", appt.Status)
		return nil
	}

	msg, err := email.Reminder(job.View)
	if err != nil {
		return err
	}
	if err := w.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reminder email: %w", err)
	}
	if job.View.CustomerPhone != "" {
		if err := w.sms.Send(ctx, job.View.CustomerPhone, email.SMSBody(job.View)); err != nil {
			// Email already went out; a retry would duplicate it.
			w.logger.Warn("reminder sms failed", "err", err, "appointment_id", job.AppointmentID, "provider", w.sms.ProviderID())
		}
	}
	w.logger.Info("reminder sent", "appointment_id", job.AppointmentID, "remind_at", job.RemindAt)
	return nil
}
