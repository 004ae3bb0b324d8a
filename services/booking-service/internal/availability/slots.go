package availability

import (
	"time"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/obstruction"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/temporal"
)

// Slot is a bookable half-open interval in UTC.
type Slot struct {
	Start time.Time
	End   time.Time
}

type Request struct {
	Calendar        calendar.Resolved
	Date            temporal.Date
	DurationMinutes int
	Busy            *obstruction.Index
	Now             time.Time
}

// Generate walks each working window of the requested local date in steps of the service
// duration and keeps candidates that exist on the wall clock, end inside the window, start at
// or after Now and do not intersect the busy index. Output is ascending and deterministic.
func Generate(req Request) []Slot {
	if req.DurationMinutes <= 0 || req.Calendar.Location == nil {
		return nil
	}
	loc := req.Calendar.Location
	step := temporal.Clock(req.DurationMinutes)
	duration := time.Duration(req.DurationMinutes) * time.Minute

	var slots []Slot
	for _, w := range req.Calendar.WindowsOn(req.Date) {
		windowEnd := temporal.ToUTCForward(req.Date, w.End, loc)
		for c := w.Start; c+step <= w.End; c += step {
			start, ok := temporal.ToUTC(req.Date, c, loc)
			if !ok {
				// Wall time does not exist (spring-forward gap).
				continue
			}
			end := start.Add(duration)
			if end.After(windowEnd) {
				continue
			}
			if start.Before(req.Now) {
				continue
			}
			if req.Busy != nil && req.Busy.Intersects(temporal.Interval{Start: start, End: end}) {
				continue
			}
			slots = append(slots, Slot{Start: start, End: end})
		}
	}
	return slots
}

// ObstructionRange is the local date widened by a day on each side so buffer padding that
// crosses midnight is still seen.
func ObstructionRange(cal calendar.Resolved, date temporal.Date) temporal.Interval {
	return temporal.Interval{
		Start: temporal.ToUTCForward(date.AddDays(-1), 0, cal.Location),
		End:   temporal.ToUTCForward(date.AddDays(2), 0, cal.Location),
	}
}

// WithinWorkingHours reports whether [start, start+duration) lies inside one working window
// of the local day start falls on.
func WithinWorkingHours(cal calendar.Resolved, start time.Time, durationMinutes int) bool {
	if durationMinutes <= 0 || cal.Location == nil {
		return false
	}
	_, day, _ := temporal.ToLocal(start, cal.Location)
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	for _, w := range cal.WindowsOn(day) {
		ws := temporal.ToUTCForward(day, w.Start, cal.Location)
		we := temporal.ToUTCForward(day, w.End, cal.Location)
		if !start.Before(ws) && !end.After(we) {
			return true
		}
	}
	return false
}
