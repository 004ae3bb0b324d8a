// Package reminders persists due reminders and sends them from a cron-driven worker.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	otelx "github.com/md-rashed-zaman/apptcrm/libs/otel"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/email"
)

type Job struct {
	ID             int64
	AppointmentID  string
	OrganizationID string
	RemindAt       time.Time
	View           email.View
	Traceparent    string
	Tracestate     string
	Attempts       int
	MaxAttempts    int
	NextRunAt      time.Time
}

// IdempotencyKey makes enqueueing the same reminder twice a no-op.
func (j Job) IdempotencyKey() string {
	return fmt.Sprintf("%s:%d", j.AppointmentID, j.RemindAt.Unix())
}

// Handler processes one due job. A nil error marks it sent.
type Handler func(ctx context.Context, job Job) error

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// ProcessDue claims up to limit due jobs so concurrent workers never share one, runs
	// handle for each and records the outcome. It returns how many jobs were claimed.
	ProcessDue(ctx context.Context, now time.Time, limit int, handle Handler) (int, error)
}

type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Lease is how long a claimed job stays hidden from other workers. A job whose
	// outcome was never recorded becomes due again once it expires.
	Lease time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.Backoff <= 0 {
		p.Backoff = time.Minute
	}
	if p.Lease <= 0 {
		p.Lease = 5 * time.Minute
	}
	return p
}

// next returns the status and next run time after a failed attempt.
func (p RetryPolicy) next(attempts int, now time.Time, maxAttempts int) (string, time.Time) {
	if maxAttempts <= 0 {
		maxAttempts = p.MaxAttempts
	}
	if attempts >= maxAttempts {
		return statusFailed, now
	}
	return statusPending, now.Add(time.Duration(attempts) * p.Backoff)
}

// claimer is the storage side of ProcessDue.
type claimer interface {
	// claim leases up to limit due jobs and returns them.
	claim(ctx context.Context, now time.Time, limit int) ([]Job, error)
	// record stores the outcome of one handled job.
	record(ctx context.Context, job Job, now time.Time, handleErr error) error
}

// drain claims due jobs, handles them with no claim held open and records each
// outcome on its own. A failed record does not stop the remaining jobs.
func drain(ctx context.Context, c claimer, now time.Time, limit int, handle Handler) (int, error) {
	jobs, err := c.claim(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("claim due reminders: %w", err)
	}
	var failed []error
	for _, job := range jobs {
		herr := handle(otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate), job)
		if err := c.record(ctx, job, now, herr); err != nil {
			failed = append(failed, fmt.Errorf("record reminder %d: %w", job.ID, err))
		}
	}
	return len(jobs), errors.Join(failed...)
}

const (
	statusPending = "pending"
	statusSent    = "sent"
	statusFailed  = "failed"
)
