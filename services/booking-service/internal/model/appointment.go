package model

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"

	// statusConfirmed is a display label some clients send; it is never stored.
	statusConfirmed = "CONFIRMED"
)

// ParseStatus accepts any casing and folds CONFIRMED into PENDING.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(StatusPending), statusConfirmed:
		return StatusPending, true
	case string(StatusCompleted):
		return StatusCompleted, true
	case string(StatusCancelled):
		return StatusCancelled, true
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Appointment struct {
	ID              string
	OrganizationID  string
	Assignee        Owner
	CustomerID      string
	ServiceID       string
	Title           string
	Description     string
	StartTime       time.Time
	DurationMinutes int
	// BufferMinutes is captured from the calendar at booking time.
	BufferMinutes int
	Fee           int64
	Status        Status
	CancelledAt   *time.Time
	CancelReason  string
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
