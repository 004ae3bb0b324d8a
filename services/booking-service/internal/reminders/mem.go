package reminders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemQueue is the in-process queue used with the memory store.
type MemQueue struct {
	mu     sync.Mutex
	policy RetryPolicy
	seq    int64
	jobs   map[string]*memJob
}

type memJob struct {
	Job
	status  string
	lastErr string
}

func NewMemQueue(policy RetryPolicy) *MemQueue {
	return &MemQueue{policy: policy.withDefaults(), jobs: make(map[string]*memJob)}
}

func (q *MemQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := job.IdempotencyKey()
	if _, ok := q.jobs[key]; ok {
		return nil
	}
	q.seq++
	job.ID = q.seq
	job.NextRunAt = job.RemindAt
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = q.policy.MaxAttempts
	}
	q.jobs[key] = &memJob{Job: job, status: statusPending}
	return nil
}

func (q *MemQueue) ProcessDue(ctx context.Context, now time.Time, limit int, handle Handler) (int, error) {
	return drain(ctx, q, now, limit, handle)
}

func (q *MemQueue) claim(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*memJob
	for _, j := range q.jobs {
		if j.status == statusPending && !j.NextRunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool { return due[i].NextRunAt.Before(due[k].NextRunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	jobs := make([]Job, len(due))
	for i, j := range due {
		jobs[i] = j.Job
		j.NextRunAt = now.Add(q.policy.Lease)
	}
	return jobs, nil
}

func (q *MemQueue) record(ctx context.Context, job Job, now time.Time, handleErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[job.IdempotencyKey()]
	if !ok {
		return fmt.Errorf("reminder %d not queued", job.ID)
	}
	if handleErr != nil {
		j.Attempts = job.Attempts + 1
		j.status, j.NextRunAt = q.policy.next(j.Attempts, now, j.MaxAttempts)
		j.lastErr = handleErr.Error()
		return nil
	}
	j.status = statusSent
	return nil
}

// Pending returns jobs still waiting to be sent, ordered by next run time.
func (q *MemQueue) Pending() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Job
	for _, j := range q.jobs {
		if j.status == statusPending {
			out = append(out, j.Job)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].NextRunAt.Before(out[k].NextRunAt) })
	return out
}
