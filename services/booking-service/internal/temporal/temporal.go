// Package temporal converts between calendar-local wall-clock time and UTC instants.
//
// Conversions always go through the IANA database so daylight-saving transitions are
// honored: a wall-clock time inside a spring-forward gap does not exist, and a time that
// repeats after a fall-back transition resolves to its earlier occurrence.
package temporal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	// Embedded zone data keeps conversions identical on hosts without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// Clock is a local wall-clock time as minutes since midnight. 24:00 is allowed as a window end.
type Clock int

const MaxClock Clock = 24 * 60

func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", raw, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", raw, err)
	}
	c := Clock(h*60 + m)
	if h < 0 || m < 0 || m > 59 || c > MaxClock {
		return 0, fmt.Errorf("invalid clock %q: out of range", raw)
	}
	return c, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Date is a calendar day with no location attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return DateOf(t), nil
}

// DateOf returns the day t falls on in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) wall() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Weekday() time.Weekday { return d.wall().Weekday() }

func (d Date) AddDays(n int) Date { return DateOf(d.wall().AddDate(0, 0, n)) }

func (d Date) String() string { return d.wall().Format(time.DateOnly) }

// LoadLocation resolves an IANA name; empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}

// ToLocal returns the weekday, day and wall-clock time of instant in loc.
func ToLocal(instant time.Time, loc *time.Location) (time.Weekday, Date, Clock) {
	lt := instant.In(loc)
	return lt.Weekday(), DateOf(lt), Clock(lt.Hour()*60 + lt.Minute())
}

// ToUTC converts a local wall-clock time to an instant. ok is false when the wall time falls
// in a spring-forward gap. Ambiguous fall-back times return the earlier instant.
func ToUTC(d Date, c Clock, loc *time.Location) (instant time.Time, ok bool) {
	wall := d.wall().Add(time.Duration(c) * time.Minute)
	var best time.Time
	for _, off := range candidateOffsets(wall, loc) {
		u := wall.Add(-time.Duration(off) * time.Second)
		if _, got := u.In(loc).Zone(); got != off {
			continue
		}
		if !ok || u.Before(best) {
			best, ok = u, true
		}
	}
	if !ok {
		return time.Time{}, false
	}
	return best.UTC(), true
}

// ToUTCForward is ToUTC with gap times shifted forward by the length of the gap, so
// 03:30 on a 03:00->04:00 spring-forward day becomes 04:30 local. Used for window bounds.
func ToUTCForward(d Date, c Clock, loc *time.Location) time.Time {
	if u, ok := ToUTC(d, c, loc); ok {
		return u
	}
	wall := d.wall().Add(time.Duration(c) * time.Minute)
	_, before := wall.Add(-24 * time.Hour).In(loc).Zone()
	return wall.Add(-time.Duration(before) * time.Second).UTC()
}

// candidateOffsets samples the zone a day either side of wall. Real-world zones never
// transition twice within that span.
func candidateOffsets(wall time.Time, loc *time.Location) []int {
	_, before := wall.Add(-24 * time.Hour).In(loc).Zone()
	_, after := wall.Add(24 * time.Hour).In(loc).Zone()
	if before == after {
		return []int{before}
	}
	return []int{before, after}
}

func AddMinutes(t time.Time, minutes int) time.Time {
	return t.Add(time.Duration(minutes) * time.Minute)
}

// Interval is half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (a Interval) Valid() bool { return a.End.After(a.Start) }

// Overlaps reports whether two half-open intervals share any instant. Touching intervals do not.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Pad widens iv by minutes on both ends.
func (a Interval) Pad(minutes int) Interval {
	d := time.Duration(minutes) * time.Minute
	return Interval{Start: a.Start.Add(-d), End: a.End.Add(d)}
}
