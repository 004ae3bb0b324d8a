package model

import (
	"strings"
	"time"
)

type OwnerType string

const (
	OwnerMember       OwnerType = "member"
	OwnerOrganization OwnerType = "organization"
)

// Owner identifies who holds a calendar, performs a service or is absent during time-off.
type Owner struct {
	Type OwnerType `yaml:"type" json:"type" validate:"omitempty,oneof=member organization"`
	ID   string    `yaml:"id" json:"id"`
}

func (o Owner) IsZero() bool { return o.ID == "" }

type Organization struct {
	ID            string    `yaml:"id"`
	Name          string    `yaml:"name"`
	TimeZone      string    `yaml:"time_zone"`
	BufferMinutes int       `yaml:"buffer_minutes"`
	Currency      string    `yaml:"currency"`
	ContactEmail  string    `yaml:"contact_email"`
	ContactPhone  string    `yaml:"contact_phone"`
	Address       string    `yaml:"address"`
	CreatedAt     time.Time `yaml:"-"`
}

// MaxBufferMinutes caps every buffer, so a neighbour's padding never reaches further
// than this from its appointment.
const MaxBufferMinutes = 24 * 60

// Window is a local wall-clock range in "HH:MM" form, end exclusive.
type Window struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// WorkingHours is keyed by lowercase English weekday name ("monday").
type WorkingHours map[string][]Window

func (wh WorkingHours) For(day time.Weekday) []Window {
	return wh[strings.ToLower(day.String())]
}

type Calendar struct {
	ID             string       `yaml:"id"`
	OrganizationID string       `yaml:"organization_id"`
	Owner          Owner        `yaml:"owner"`
	Name           string       `yaml:"name"`
	WorkingHours   WorkingHours `yaml:"working_hours"`
	BufferMinutes  int          `yaml:"buffer_minutes"`
	TimeZone       string       `yaml:"time_zone"`
}

type TimeOff struct {
	ID             string    `yaml:"id"`
	OrganizationID string    `yaml:"organization_id"`
	Owner          Owner     `yaml:"owner"`
	StartAt        time.Time `yaml:"start_at"`
	EndAt          time.Time `yaml:"end_at"`
	Reason         string    `yaml:"reason"`
	CreatedBy      string    `yaml:"created_by"`
}

type Service struct {
	ID              string `yaml:"id"`
	OrganizationID  string `yaml:"organization_id"`
	Owner           Owner  `yaml:"owner"`
	Name            string `yaml:"name"`
	Price           int64  `yaml:"price"` // minor currency units
	DurationMinutes int    `yaml:"duration_minutes"`
	Order           int    `yaml:"order"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Customer struct {
	ID             string
	OrganizationID string
	Email          string
	Name           string
	Phone          string
	Fields         map[string]string
	CreatedAt      time.Time
}
