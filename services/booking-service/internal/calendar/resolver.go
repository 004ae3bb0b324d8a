package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/temporal"
)

// Store is the read side the resolver needs. Missing rows are reported as errs.ErrNotFound.
type Store interface {
	GetOrganization(ctx context.Context, organizationID string) (model.Organization, error)
	GetCalendarByOwner(ctx context.Context, organizationID string, owner model.Owner) (model.Calendar, error)
}

type Window struct {
	Start temporal.Clock
	End   temporal.Clock
}

// Resolved is a calendar ready for slot generation: windows parsed, zone loaded.
type Resolved struct {
	CalendarID    string
	Owner         model.Owner
	BufferMinutes int
	Location      *time.Location
	windows       map[time.Weekday][]Window
}

// WindowsOn returns the ordered working windows for the weekday of d.
func (r Resolved) WindowsOn(d temporal.Date) []Window {
	return r.windows[d.Weekday()]
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve prefers the assignee's own calendar and falls back to the organization calendar.
// A zero assignee goes straight to the organization calendar.
func (r *Resolver) Resolve(ctx context.Context, organizationID string, assignee model.Owner) (Resolved, error) {
	org, err := r.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return Resolved{}, err
	}

	var cal model.Calendar
	found := false
	if !assignee.IsZero() {
		cal, err = r.store.GetCalendarByOwner(ctx, organizationID, assignee)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, errs.ErrNotFound):
			return Resolved{}, err
		}
	}
	if !found {
		cal, err = r.store.GetCalendarByOwner(ctx, organizationID, model.Owner{Type: model.OwnerOrganization, ID: organizationID})
		if errors.Is(err, errs.ErrNotFound) {
			return Resolved{}, fmt.Errorf("organization %s: %w", organizationID, errs.ErrCalendarNotFound)
		}
		if err != nil {
			return Resolved{}, err
		}
	}

	zone := cal.TimeZone
	if zone == "" {
		zone = org.TimeZone
	}
	loc, err := temporal.LoadLocation(zone)
	if err != nil {
		return Resolved{}, errs.Invalid("calendar.time_zone", err.Error())
	}

	return NewResolved(cal, loc), nil
}

// parseWorkingHours drops malformed or empty windows instead of failing the whole calendar.
func parseWorkingHours(wh model.WorkingHours) map[time.Weekday][]Window {
	out := make(map[time.Weekday][]Window, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		var ws []Window
		for _, raw := range wh.For(day) {
			start, err := temporal.ParseClock(raw.Start)
			if err != nil {
				continue
			}
			end, err := temporal.ParseClock(raw.End)
			if err != nil || end <= start {
				continue
			}
			ws = append(ws, Window{Start: start, End: end})
		}
		sort.Slice(ws, func(i, j int) bool { return ws[i].Start < ws[j].Start })
		if len(ws) > 0 {
			out[day] = ws
		}
	}
	return out
}

// NewResolved builds a Resolved from a calendar whose zone is already loaded.
func NewResolved(cal model.Calendar, loc *time.Location) Resolved {
	return Resolved{
		CalendarID:    cal.ID,
		Owner:         cal.Owner,
		BufferMinutes: min(max(cal.BufferMinutes, 0), model.MaxBufferMinutes),
		Location:      loc,
		windows:       parseWorkingHours(cal.WorkingHours),
	}
}
