package temporal

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	if err != nil || c != 570 {
		t.Fatalf("expected 570, got %d err=%v", c, err)
	}
	if c, err := ParseClock("24:00"); err != nil || c != MaxClock {
		t.Fatalf("expected 24:00 to parse as end of day, got %d err=%v", c, err)
	}
	for _, bad := range []string{"9:30", "24:01", "12:60", "ab:cd", ""} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if got := Clock(570).String(); got != "09:30" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Weekday() != time.Monday {
		t.Fatalf("expected monday, got %s", d.Weekday())
	}
	if got := d.AddDays(-2).String(); got != "2026-02-28" {
		t.Fatalf("unexpected date %s", got)
	}
	if _, err := ParseDate("02/03/2026"); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestToUTCOrdinary(t *testing.T) {
	loc := mustLoc(t, "Europe/Sofia")
	got, ok := ToUTC(Date{2026, time.January, 15}, 9*60, loc)
	if !ok {
		t.Fatalf("expected valid time")
	}
	want := time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestToUTCSpringForwardGap(t *testing.T) {
	loc := mustLoc(t, "Europe/Sofia")
	day := Date{2026, time.March, 29}
	if _, ok := ToUTC(day, 3*60+30, loc); ok {
		t.Fatalf("03:30 does not exist on the spring-forward date")
	}
	before, ok := ToUTC(day, 2*60+30, loc)
	if !ok || !before.Equal(time.Date(2026, 3, 29, 0, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected 02:30 conversion %s ok=%v", before, ok)
	}
	after, ok := ToUTC(day, 4*60, loc)
	if !ok || !after.Equal(time.Date(2026, 3, 29, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected 04:00 conversion %s ok=%v", after, ok)
	}
	fwd := ToUTCForward(day, 3*60+30, loc)
	if !fwd.Equal(time.Date(2026, 3, 29, 1, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected forward resolution %s", fwd)
	}
}

func TestToUTCFallBackUsesEarlierOccurrence(t *testing.T) {
	loc := mustLoc(t, "Europe/Sofia")
	got, ok := ToUTC(Date{2026, time.October, 25}, 3*60+30, loc)
	if !ok {
		t.Fatalf("expected ambiguous time to resolve")
	}
	want := time.Date(2026, 10, 25, 0, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected earlier occurrence %s, got %s", want, got)
	}
}

func TestToLocal(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	wd, d, c := ToLocal(time.Date(2026, 3, 3, 2, 15, 0, 0, time.UTC), loc)
	if wd != time.Monday || d != (Date{2026, time.March, 2}) || c != 21*60+15 {
		t.Fatalf("unexpected local %s %s %s", wd, d, c)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a := Interval{Start: base, End: base.Add(30 * time.Minute)}
	touching := Interval{Start: base.Add(30 * time.Minute), End: base.Add(time.Hour)}
	if Overlaps(a, touching) {
		t.Fatalf("touching intervals must not overlap")
	}
	if !Overlaps(a.Pad(10), touching) {
		t.Fatalf("padded interval must overlap neighbour")
	}
	if !AddMinutes(base, 90).Equal(base.Add(90 * time.Minute)) {
		t.Fatalf("AddMinutes mismatch")
	}
}
