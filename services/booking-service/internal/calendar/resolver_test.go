package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/temporal"
)

type fakeStore struct {
	orgs      map[string]model.Organization
	calendars map[model.Owner]model.Calendar
	failWith  error
}

func (f *fakeStore) GetOrganization(ctx context.Context, id string) (model.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return model.Organization{}, errs.NotFound("organization", id)
	}
	return org, nil
}

func (f *fakeStore) GetCalendarByOwner(ctx context.Context, orgID string, owner model.Owner) (model.Calendar, error) {
	if f.failWith != nil {
		return model.Calendar{}, f.failWith
	}
	cal, ok := f.calendars[owner]
	if !ok || cal.OrganizationID != orgID {
		return model.Calendar{}, errs.NotFound("calendar", owner.ID)
	}
	return cal, nil
}

func newFake() *fakeStore {
	orgOwner := model.Owner{Type: model.OwnerOrganization, ID: "org-1"}
	member := model.Owner{Type: model.OwnerMember, ID: "m-1"}
	return &fakeStore{
		orgs: map[string]model.Organization{"org-1": {ID: "org-1", TimeZone: "Europe/Sofia"}},
		calendars: map[model.Owner]model.Calendar{
			orgOwner: {ID: "cal-org", OrganizationID: "org-1", Owner: orgOwner, BufferMinutes: 5,
				WorkingHours: model.WorkingHours{"monday": {{Start: "08:00", End: "16:00"}}}},
			member: {ID: "cal-m1", OrganizationID: "org-1", Owner: member, BufferMinutes: 10, TimeZone: "UTC",
				WorkingHours: model.WorkingHours{"monday": {
					{Start: "13:00", End: "17:00"},
					{Start: "09:00", End: "12:00"},
					{Start: "12:00", End: "12:00"},
					{Start: "bad", End: "14:00"},
				}}},
		},
	}
}

var monday = temporal.Date{Year: 2026, Month: time.March, Day: 2}

func TestResolveAssigneeCalendar(t *testing.T) {
	r := NewResolver(newFake())
	got, err := r.Resolve(context.Background(), "org-1", model.Owner{Type: model.OwnerMember, ID: "m-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CalendarID != "cal-m1" || got.BufferMinutes != 10 || got.Location != time.UTC {
		t.Fatalf("unexpected resolution %+v", got)
	}
	ws := got.WindowsOn(monday)
	if len(ws) != 2 || ws[0].Start != 9*60 || ws[1].Start != 13*60 {
		t.Fatalf("expected two sorted valid windows, got %v", ws)
	}
}

func TestResolveFallsBackToOrganization(t *testing.T) {
	r := NewResolver(newFake())
	got, err := r.Resolve(context.Background(), "org-1", model.Owner{Type: model.OwnerMember, ID: "unknown"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CalendarID != "cal-org" {
		t.Fatalf("expected organization calendar, got %s", got.CalendarID)
	}
	if got.Location.String() != "Europe/Sofia" {
		t.Fatalf("expected organization zone, got %s", got.Location)
	}

	got, err = r.Resolve(context.Background(), "org-1", model.Owner{})
	if err != nil || got.CalendarID != "cal-org" {
		t.Fatalf("expected organization calendar without assignee, got %+v err=%v", got, err)
	}
}

func TestResolveCalendarNotFound(t *testing.T) {
	fs := newFake()
	fs.orgs["org-2"] = model.Organization{ID: "org-2"}
	r := NewResolver(fs)
	_, err := r.Resolve(context.Background(), "org-2", model.Owner{Type: model.OwnerMember, ID: "m-1"})
	if !errors.Is(err, errs.ErrCalendarNotFound) {
		t.Fatalf("expected calendar not found, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), "missing", model.Owner{}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected organization not found, got %v", err)
	}
}

func TestResolvePropagatesStoreFailure(t *testing.T) {
	fs := newFake()
	fs.failWith = errs.Transient("get calendar", errors.New("timeout"))
	_, err := NewResolver(fs).Resolve(context.Background(), "org-1", model.Owner{Type: model.OwnerMember, ID: "m-1"})
	if !errors.Is(err, errs.ErrTransientStore) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
