package memstore

import (
	"fmt"
	"io"
	"os"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML seed format for the memory store.
type Fixture struct {
	Organizations []model.Organization `yaml:"organizations"`
	Calendars     []model.Calendar     `yaml:"calendars"`
	Services      []model.Service      `yaml:"services"`
	TimeOff       []model.TimeOff      `yaml:"time_off"`
}

func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Store, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	s := New()
	for _, o := range fx.Organizations {
		s.PutOrganization(o)
	}
	for _, c := range fx.Calendars {
		if c.Owner.IsZero() {
			c.Owner = model.Owner{Type: model.OwnerOrganization, ID: c.OrganizationID}
		}
		s.PutCalendar(c)
	}
	for _, svc := range fx.Services {
		if svc.DurationMinutes <= 0 {
			return nil, fmt.Errorf("service %s: duration_minutes must be positive", svc.ID)
		}
		s.PutService(svc)
	}
	for _, t := range fx.TimeOff {
		if !t.EndAt.After(t.StartAt) {
			return nil, fmt.Errorf("time off %s: end_at must be after start_at", t.ID)
		}
		s.PutTimeOff(t)
	}
	return s, nil
}
