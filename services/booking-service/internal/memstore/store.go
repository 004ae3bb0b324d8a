// Package memstore is an in-process implementation of the booking store used for local
// development and tests. Reservations for one assignee are serialized; everything else
// runs concurrently.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
)

type ownerKey struct {
	org   string
	owner model.Owner
}

type Store struct {
	mu         sync.RWMutex
	orgs       map[string]model.Organization
	calendars  map[ownerKey]model.Calendar
	services   map[string]model.Service
	timeOff    []model.TimeOff
	customers  map[string]model.Customer
	byEmail    map[string]string
	appts      map[string]model.Appointment
	assigneeMu sync.Map // ownerKey -> *sync.Mutex
}

var _ booking.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		orgs:      make(map[string]model.Organization),
		calendars: make(map[ownerKey]model.Calendar),
		services:  make(map[string]model.Service),
		customers: make(map[string]model.Customer),
		byEmail:   make(map[string]string),
		appts:     make(map[string]model.Appointment),
	}
}

func (s *Store) PutOrganization(o model.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[o.ID] = o
}

func (s *Store) PutCalendar(c model.Calendar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars[ownerKey{org: c.OrganizationID, owner: c.Owner}] = c
}

func (s *Store) PutService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *Store) PutTimeOff(t model.TimeOff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeOff = append(s.timeOff, t)
}

// PutAppointment inserts without any overlap check. Seeding only.
func (s *Store) PutAppointment(a model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts[a.ID] = a
}

func (s *Store) GetOrganization(ctx context.Context, organizationID string) (model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[organizationID]
	if !ok {
		return model.Organization{}, errs.NotFound("organization", organizationID)
	}
	return o, nil
}

func (s *Store) GetCalendarByOwner(ctx context.Context, organizationID string, owner model.Owner) (model.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calendars[ownerKey{org: organizationID, owner: owner}]
	if !ok {
		return model.Calendar{}, errs.NotFound("calendar", owner.ID)
	}
	return c, nil
}

func (s *Store) GetService(ctx context.Context, organizationID, serviceID string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok || svc.OrganizationID != organizationID {
		return model.Service{}, errs.NotFound("service", serviceID)
	}
	return svc, nil
}

func (s *Store) GetCustomer(ctx context.Context, organizationID, customerID string) (model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok || c.OrganizationID != organizationID {
		return model.Customer{}, errs.NotFound("customer", customerID)
	}
	return c, nil
}

func (s *Store) FindOrCreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.OrganizationID + "|" + strings.ToLower(c.Email)
	if id, ok := s.byEmail[key]; ok {
		return s.customers[id], nil
	}
	s.customers[c.ID] = c
	s.byEmail[key] = c.ID
	return c, nil
}

func (s *Store) ListActiveAppointments(ctx context.Context, organizationID string, assignee model.Owner, from, to time.Time) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.OrganizationID != organizationID || a.Assignee != assignee || a.Status == model.StatusCancelled {
			continue
		}
		if a.StartTime.Before(to) && a.EndTime().After(from) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Store) ListTimeOff(ctx context.Context, organizationID string, owner model.Owner, from, to time.Time) ([]model.TimeOff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TimeOff
	for _, t := range s.timeOff {
		if t.OrganizationID == organizationID && t.Owner == owner && t.StartAt.Before(to) && t.EndAt.After(from) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) lockAssignee(org string, owner model.Owner) func() {
	m, _ := s.assigneeMu.LoadOrStore(ownerKey{org: org, owner: owner}, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Reserve holds the assignee's lock across verify and insert, so two overlapping
// reservations for the same assignee cannot both pass verification.
func (s *Store) Reserve(ctx context.Context, appt model.Appointment, verify booking.VerifyFunc) error {
	unlock := s.lockAssignee(appt.OrganizationID, appt.Assignee)
	defer unlock()

	if err := verify(ctx, s); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts[appt.ID] = appt
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, organizationID, appointmentID string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appts[appointmentID]
	if !ok || a.OrganizationID != organizationID {
		return model.Appointment{}, errs.NotFound("appointment", appointmentID)
	}
	return a, nil
}

func (s *Store) TransitionAppointment(ctx context.Context, organizationID, appointmentID string, fn booking.TransitionFunc) (model.Appointment, error) {
	current, err := s.GetAppointment(ctx, organizationID, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	unlock := s.lockAssignee(organizationID, current.Assignee)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.appts[appointmentID]
	changed, err := fn(&a)
	if err != nil {
		return model.Appointment{}, err
	}
	if changed {
		s.appts[appointmentID] = a
	}
	return a, nil
}

func (s *Store) ListAppointments(ctx context.Context, organizationID string, limit int) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.OrganizationID == organizationID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
