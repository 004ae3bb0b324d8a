package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/obstruction"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/temporal"
)

var (
	monday = temporal.Date{Year: 2026, Month: time.March, Day: 2}
	past   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func utcAt(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }

func resolved(t *testing.T, zone string, buffer int, wh model.WorkingHours) calendar.Resolved {
	t.Helper()
	loc, err := temporal.LoadLocation(zone)
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return calendar.NewResolved(model.Calendar{ID: "cal", BufferMinutes: buffer, WorkingHours: wh}, loc)
}

func starts(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.UTC().Format("15:04"))
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGenerateBackToBackSlots(t *testing.T) {
	cal := resolved(t, "UTC", 10, model.WorkingHours{"monday": {{Start: "09:00", End: "12:00"}}})
	slots := Generate(Request{Calendar: cal, Date: monday, DurationMinutes: 30, Busy: obstruction.FromIntervals(nil), Now: past})

	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if got := starts(slots); !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	last := slots[len(slots)-1]
	if !last.End.Equal(utcAt(12, 0)) {
		t.Fatalf("expected last slot to end exactly at 12:00, got %s", last.End)
	}
}

func TestGenerateRemovesBufferedNeighbours(t *testing.T) {
	cal := resolved(t, "UTC", 10, model.WorkingHours{"monday": {{Start: "09:00", End: "12:00"}}})
	existing := temporal.Interval{Start: utcAt(10, 0), End: utcAt(10, 30)}
	busy := obstruction.FromIntervals([]temporal.Interval{existing.Pad(cal.BufferMinutes)})

	slots := Generate(Request{Calendar: cal, Date: monday, DurationMinutes: 30, Busy: busy, Now: past})
	want := []string{"09:00", "11:00", "11:30"}
	if got := starts(slots); !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGenerateSkipsPastAndNonWorkingDays(t *testing.T) {
	cal := resolved(t, "UTC", 0, model.WorkingHours{"monday": {{Start: "09:00", End: "12:00"}}})
	slots := Generate(Request{Calendar: cal, Date: monday, DurationMinutes: 60, Now: utcAt(10, 1)})
	if got := starts(slots); !equal(got, []string{"11:00"}) {
		t.Fatalf("expected only 11:00, got %v", got)
	}
	if got := Generate(Request{Calendar: cal, Date: monday.AddDays(1), DurationMinutes: 60, Now: past}); len(got) != 0 {
		t.Fatalf("expected no slots on a non-working day, got %v", got)
	}
	if got := Generate(Request{Calendar: cal, Date: monday, DurationMinutes: 0, Now: past}); got != nil {
		t.Fatalf("expected nil for zero duration, got %v", got)
	}
}

func TestGenerateTimeOffBlocksWithoutPadding(t *testing.T) {
	cal := resolved(t, "UTC", 15, model.WorkingHours{"monday": {{Start: "09:00", End: "12:00"}}})
	busy := obstruction.FromIntervals([]temporal.Interval{{Start: utcAt(10, 0), End: utcAt(11, 0)}})
	slots := Generate(Request{Calendar: cal, Date: monday, DurationMinutes: 30, Busy: busy, Now: past})
	want := []string{"09:00", "09:30", "11:00", "11:30"}
	if got := starts(slots); !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGenerateSpringForwardSofia(t *testing.T) {
	sunday := temporal.Date{Year: 2026, Month: time.March, Day: 29}
	cal := resolved(t, "Europe/Sofia", 0, model.WorkingHours{"sunday": {
		{Start: "00:00", End: "06:00"},
		{Start: "09:00", End: "18:00"},
	}})
	slots := Generate(Request{Calendar: cal, Date: sunday, DurationMinutes: 60, Now: past})

	var got []string
	for _, s := range slots {
		got = append(got, s.Start.UTC().Format("01-02 15:04"))
	}
	want := []string{
		// 00:00, 01:00, 02:00 at +02:00; 03:00 does not exist; 04:00 and 05:00 at +03:00.
		"03-28 22:00", "03-28 23:00", "03-29 00:00", "03-29 01:00", "03-29 02:00",
		// 09:00..17:00 at +03:00.
		"03-29 06:00", "03-29 07:00", "03-29 08:00", "03-29 09:00", "03-29 10:00",
		"03-29 11:00", "03-29 12:00", "03-29 13:00", "03-29 14:00",
	}
	if !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for _, s := range slots {
		if local := s.Start.In(cal.Location).Format("15:04"); local == "03:00" {
			t.Fatalf("slot offered at non-existent local time: %s", s.Start)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	cal := resolved(t, "America/New_York", 5, model.WorkingHours{"monday": {{Start: "08:00", End: "17:00"}}})
	busy := obstruction.FromIntervals([]temporal.Interval{{Start: utcAt(15, 0), End: utcAt(16, 0)}})
	req := Request{Calendar: cal, Date: monday, DurationMinutes: 45, Busy: busy, Now: past}
	a, b := starts(Generate(req)), starts(Generate(req))
	if !equal(a, b) || len(a) == 0 {
		t.Fatalf("expected identical non-empty output, got %v and %v", a, b)
	}
}

func TestObstructionRangeCoversNeighbourDays(t *testing.T) {
	cal := resolved(t, "UTC", 0, nil)
	rng := ObstructionRange(cal, monday)
	if !rng.Start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) || !rng.End.Equal(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %v", rng)
	}
}

func TestWithinWorkingHours(t *testing.T) {
	cal := resolved(t, "UTC", 0, model.WorkingHours{"monday": {{Start: "09:00", End: "12:00"}, {Start: "13:00", End: "17:00"}}})
	cases := []struct {
		start time.Time
		mins  int
		want  bool
	}{
		{utcAt(9, 0), 30, true},
		{utcAt(11, 45), 15, true},
		{utcAt(11, 45), 30, false},
		{utcAt(12, 30), 30, false},
		{utcAt(13, 10), 50, true},
		{utcAt(8, 30), 30, false},
		{utcAt(9, 0), 0, false},
	}
	for _, c := range cases {
		if got := WithinWorkingHours(cal, c.start, c.mins); got != c.want {
			t.Fatalf("WithinWorkingHours(%s,%d) = %v want %v", c.start.Format("15:04"), c.mins, got, c.want)
		}
	}
}
