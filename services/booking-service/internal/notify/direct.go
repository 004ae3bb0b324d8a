package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/email"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/reminders"
)

// DirectDelivery emails the confirmation now and persists reminders for the cron worker.
type DirectDelivery struct {
	mail  email.Sender
	queue reminders.Queue
}

func NewDirectDelivery(mail email.Sender, queue reminders.Queue) *DirectDelivery {
	return &DirectDelivery{mail: mail, queue: queue}
}

func (d *DirectDelivery) SendConfirmation(ctx context.Context, c Confirmation) error {
	msg, err := email.Confirmation(viewOf(c))
	if err != nil {
		return err
	}
	return d.mail.Send(ctx, msg)
}

func (d *DirectDelivery) ScheduleReminder(ctx context.Context, c Confirmation, remindAt time.Time) error {
	return d.queue.Enqueue(ctx, reminders.Job{
		AppointmentID:  c.AppointmentID,
		OrganizationID: c.OrganizationID,
		RemindAt:       remindAt.UTC(),
		View:           viewOf(c),
	})
}

func viewOf(c Confirmation) email.View {
	return email.View{
		OrganizationName: c.OrganizationName,
		ContactEmail:     c.ContactEmail,
		ContactPhone:     c.ContactPhone,
		Address:          c.Address,
		CustomerName:     c.CustomerName,
		CustomerEmail:    c.CustomerEmail,
		CustomerPhone:    c.CustomerPhone,
		ServiceName:      c.ServiceName,
		LocalStart:       c.LocalStart,
		DurationMinutes:  c.DurationMinutes,
		Fee:              FormatFee(c.Fee, c.Currency),
	}
}

// FormatFee renders minor units with two decimals, e.g. 2550 EUR -> "25.50 EUR".
func FormatFee(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	s := fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
	if currency = strings.ToUpper(strings.TrimSpace(currency)); currency != "" {
		s += " " + currency
	}
	return s
}
