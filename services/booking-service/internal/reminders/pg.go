package reminders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptcrm/libs/db"
	otelx "github.com/md-rashed-zaman/apptcrm/libs/otel"
)

// PGQueue stores jobs in reminder_jobs and leases them with FOR UPDATE SKIP LOCKED.
type PGQueue struct {
	pool   *db.Pool
	policy RetryPolicy
}

func NewPGQueue(pool *db.Pool, policy RetryPolicy) *PGQueue {
	return &PGQueue{pool: pool, policy: policy.withDefaults()}
}

func (q *PGQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job.View)
	if err != nil {
		return err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err = q.pool.Exec(ctx, `
		INSERT INTO reminder_jobs (idempotency_key, appointment_id, organization_id, remind_at, view, next_run_at, max_attempts, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $4, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, job.IdempotencyKey(), job.AppointmentID, job.OrganizationID, job.RemindAt, payload, q.policy.MaxAttempts, traceparent, tracestate)
	return err
}

// ProcessDue leases due jobs in a short transaction, sends them after it commits and
// records each outcome separately. Delivery is at least once: a worker that dies between
// send and record leaves the job to be retried when its lease runs out.
func (q *PGQueue) ProcessDue(ctx context.Context, now time.Time, limit int, handle Handler) (int, error) {
	return drain(ctx, q, now, limit, handle)
}

func (q *PGQueue) claim(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	var jobs []Job
	err := q.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		jobs, err = fetchDue(ctx, tx, now, limit)
		if err != nil || len(jobs) == 0 {
			return err
		}
		ids := make([]int64, len(jobs))
		for i, j := range jobs {
			ids[i] = j.ID
		}
		_, err = tx.Exec(ctx, `
			UPDATE reminder_jobs SET next_run_at = $2, updated_at = now() WHERE id = ANY($1)
		`, ids, now.Add(q.policy.Lease))
		return err
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (q *PGQueue) record(ctx context.Context, job Job, now time.Time, handleErr error) error {
	if handleErr == nil {
		_, err := q.pool.Exec(ctx, `
			UPDATE reminder_jobs SET status = $2, updated_at = now() WHERE id = $1
		`, job.ID, statusSent)
		return err
	}
	attempts := job.Attempts + 1
	status, nextRun := q.policy.next(attempts, now, job.MaxAttempts)
	_, err := q.pool.Exec(ctx, `
		UPDATE reminder_jobs
		SET attempts = $2, status = $3, next_run_at = $4, last_error = $5, updated_at = now()
		WHERE id = $1
	`, job.ID, attempts, status, nextRun, handleErr.Error())
	return err
}

func fetchDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, appointment_id::text, organization_id::text, remind_at, view, COALESCE(traceparent, ''), COALESCE(tracestate, ''), attempts, max_attempts, next_run_at
		FROM reminder_jobs
		WHERE status = 'pending' AND next_run_at <= $1
		ORDER BY next_run_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var raw []byte
		if err := rows.Scan(&j.ID, &j.AppointmentID, &j.OrganizationID, &j.RemindAt, &raw, &j.Traceparent, &j.Tracestate, &j.Attempts, &j.MaxAttempts, &j.NextRunAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &j.View); err != nil {
				return nil, err
			}
		}
		jobs = append(jobs, j)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}
