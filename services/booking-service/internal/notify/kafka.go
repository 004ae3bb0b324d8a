package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptcrm/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

const (
	TopicAppointmentBooked = "booking.appointment.booked.v1"
	TopicReminderRequested = "booking.reminder.requested.v1"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaDelivery publishes confirmations and reminder requests; an external scheduler
// consumes the reminder topic and fires at remind_at.
type KafkaDelivery struct {
	writer MessageWriter
}

func NewKafkaDelivery(w MessageWriter) *KafkaDelivery {
	return &KafkaDelivery{writer: w}
}

type reminderRequest struct {
	Confirmation
	RemindAt string `json:"remind_at"`
}

func (d *KafkaDelivery) SendConfirmation(ctx context.Context, c Confirmation) error {
	return d.publish(ctx, TopicAppointmentBooked, c.AppointmentID, c)
}

func (d *KafkaDelivery) ScheduleReminder(ctx context.Context, c Confirmation, remindAt time.Time) error {
	return d.publish(ctx, TopicReminderRequested, c.AppointmentID, reminderRequest{
		Confirmation: c,
		RemindAt:     remindAt.UTC().Format(time.RFC3339),
	})
}

func (d *KafkaDelivery) publish(ctx context.Context, topic, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: kafkax.EventHeaders(uuid.NewString(), topic),
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
