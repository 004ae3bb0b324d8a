// Package obstruction builds the merged busy set for one assignee over a time range.
package obstruction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/temporal"
)

// Source is the query capability the index is built from. Implementations must filter
// out cancelled appointments and return rows intersecting [from, to).
type Source interface {
	ListActiveAppointments(ctx context.Context, organizationID string, assignee model.Owner, from, to time.Time) ([]model.Appointment, error)
	ListTimeOff(ctx context.Context, organizationID string, owner model.Owner, from, to time.Time) ([]model.TimeOff, error)
}

// Index is an ascending list of disjoint busy intervals in UTC.
type Index struct {
	busy []temporal.Interval
}

// Build fetches appointments and time-off intersecting rng. Appointments are padded by the
// larger of bufferMinutes and the buffer captured on the appointment, capped at
// model.MaxBufferMinutes; time-off is not padded.
func Build(ctx context.Context, src Source, organizationID string, owner model.Owner, rng temporal.Interval, bufferMinutes int) (*Index, error) {
	// The captured buffer of a neighbour is unknown until it is loaded, so widen by the cap.
	spill := time.Duration(model.MaxBufferMinutes) * time.Minute
	appts, err := src.ListActiveAppointments(ctx, organizationID, owner, rng.Start.Add(-spill), rng.End.Add(spill))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	offs, err := src.ListTimeOff(ctx, organizationID, owner, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("list time off: %w", err)
	}

	busy := make([]temporal.Interval, 0, len(appts)+len(offs))
	for _, a := range appts {
		if a.Status == model.StatusCancelled {
			continue
		}
		iv := temporal.Interval{Start: a.StartTime.UTC(), End: a.EndTime().UTC()}
		busy = append(busy, iv.Pad(min(max(bufferMinutes, a.BufferMinutes), model.MaxBufferMinutes)))
	}
	for _, o := range offs {
		busy = append(busy, temporal.Interval{Start: o.StartAt.UTC(), End: o.EndAt.UTC()})
	}
	return FromIntervals(busy), nil
}

// FromIntervals sorts and coalesces overlapping or touching intervals. Empty ones are dropped.
func FromIntervals(in []temporal.Interval) *Index {
	b := make([]temporal.Interval, 0, len(in))
	for _, iv := range in {
		if iv.Valid() {
			b = append(b, iv)
		}
	}
	sort.Slice(b, func(i, j int) bool { return b[i].Start.Before(b[j].Start) })

	merged := make([]temporal.Interval, 0, len(b))
	for _, cur := range b {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.Start.After(last.End) {
			merged = append(merged, cur)
			continue
		}
		if cur.End.After(last.End) {
			last.End = cur.End
		}
	}
	return &Index{busy: merged}
}

// Intersects reports whether iv overlaps any busy interval.
func (x *Index) Intersects(iv temporal.Interval) bool {
	// Ends are strictly increasing, so the first candidate is the first busy interval ending after iv starts.
	i := sort.Search(len(x.busy), func(i int) bool { return x.busy[i].End.After(iv.Start) })
	return i < len(x.busy) && temporal.Overlaps(x.busy[i], iv)
}

func (x *Index) Intervals() []temporal.Interval {
	out := make([]temporal.Interval, len(x.busy))
	copy(out, x.busy)
	return out
}
