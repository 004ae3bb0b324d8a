package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptcrm/libs/config"
	"github.com/md-rashed-zaman/apptcrm/libs/db"
	"github.com/md-rashed-zaman/apptcrm/libs/kafkax"
	"github.com/md-rashed-zaman/apptcrm/libs/runtime"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/email"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/memstore"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/reminders"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/sms"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/storage"
)

type backend struct {
	store  booking.Store
	pool   *db.Pool
	checks []runtime.ReadyCheck
	close  func()
}

// openStore selects the entity store from STORE_DRIVER (postgres or memory).
func openStore(ctx context.Context, logger *slog.Logger) (*backend, error) {
	switch driver := strings.ToLower(config.String("STORE_DRIVER", "postgres")); driver {
	case "memory":
		store := memstore.New()
		if path := strings.TrimSpace(config.String("FIXTURE_PATH", "")); path != "" {
			loaded, err := memstore.LoadFile(path)
			if err != nil {
				return nil, fmt.Errorf("load fixture: %w", err)
			}
			store = loaded
			logger.Info("fixture loaded", "path", path)
		}
		logger.Warn("using in-memory store; data is lost on restart")
		return &backend{store: store, close: func() {}}, nil

	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, err
		}
		pool, err := db.Open(ctx, dbURL, db.PoolConfig{
			MaxConns:        int32(config.Int("DB_MAX_CONNS", 0)),
			MinConns:        int32(config.Int("DB_MIN_CONNS", 0)),
			MaxConnLifetime: config.Duration("DB_MAX_CONN_LIFETIME", 0),
			MaxConnIdleTime: config.Duration("DB_MAX_CONN_IDLE_TIME", 0),
		})
		if err != nil {
			return nil, fmt.Errorf("db connection failed: %w", err)
		}
		return &backend{
			store:  storage.NewRepository(pool),
			pool:   pool,
			checks: []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
			close:  pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}
}

type notifications struct {
	delivery notify.Delivery
	worker   *reminders.Worker
	checks   []runtime.ReadyCheck
	close    func()
}

// openNotifications selects how confirmations and reminders leave the service from
// NOTIFY_MODE: kafka publishes events, direct sends mail itself, log only records them.
func openNotifications(be *backend, logger *slog.Logger) (*notifications, error) {
	switch mode := strings.ToLower(config.String("NOTIFY_MODE", "log")); mode {
	case "kafka":
		brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
		if len(brokers) == 0 {
			return nil, fmt.Errorf("NOTIFY_MODE=kafka requires KAFKA_BROKERS")
		}
		writer := kafkax.NewWriter(brokers)
		logger.Info("notifications via kafka", "brokers", brokers)
		return &notifications{
			delivery: notify.NewKafkaDelivery(writer),
			checks:   []runtime.ReadyCheck{{Name: "kafka", Check: kafkax.ReadyCheck(brokers)}},
			close:    func() { _ = writer.Close() },
		}, nil

	case "direct":
		mail, err := newMailSender()
		if err != nil {
			return nil, err
		}
		textSender, err := newSMSSender()
		if err != nil {
			return nil, err
		}
		policy := reminders.RetryPolicy{
			MaxAttempts: config.Int("REMINDER_MAX_ATTEMPTS", 5),
			Backoff:     config.Duration("REMINDER_BACKOFF", time.Minute),
			Lease:       config.Duration("REMINDER_LEASE", 5*time.Minute),
		}
		var queue reminders.Queue
		if be.pool != nil {
			queue = reminders.NewPGQueue(be.pool, policy)
		} else {
			queue = reminders.NewMemQueue(policy)
		}
		worker := reminders.NewWorker(queue, be.store, mail, textSender, logger, reminders.WorkerConfig{
			Spec:      config.String("REMINDER_SCHEDULE", "@every 30s"),
			BatchSize: config.Int("REMINDER_BATCH_SIZE", 50),
		})
		logger.Info("notifications sent directly", "email_provider", config.String("EMAIL_PROVIDER", "smtp"))
		return &notifications{
			delivery: notify.NewDirectDelivery(mail, queue),
			worker:   worker,
			close:    func() {},
		}, nil

	case "log":
		return &notifications{delivery: notify.NewLogDelivery(logger), close: func() {}}, nil

	default:
		return nil, fmt.Errorf("unknown NOTIFY_MODE %q", mode)
	}
}

func newMailSender() (email.Sender, error) {
	switch provider := strings.ToLower(config.String("EMAIL_PROVIDER", "smtp")); provider {
	case "smtp":
		return email.NewSMTPSender(
			config.String("SMTP_HOST", "localhost"),
			config.String("SMTP_PORT", "1025"),
			config.String("SMTP_FROM", "no-reply@apptcrm.local"),
		), nil
	case "sendgrid":
		apiKey, err := config.RequiredString("SENDGRID_API_KEY")
		if err != nil {
			return nil, err
		}
		return email.NewSendGridSender(apiKey,
			config.String("SENDGRID_FROM_EMAIL", "no-reply@apptcrm.local"),
			config.String("SENDGRID_FROM_NAME", "Appointments"))
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", provider)
	}
}

func newSMSSender() (sms.Sender, error) {
	switch provider := strings.ToLower(config.String("SMS_PROVIDER", "none")); provider {
	case "twilio":
		sid, err := config.RequiredString("TWILIO_ACCOUNT_SID")
		if err != nil {
			return nil, err
		}
		token, err := config.RequiredString("TWILIO_AUTH_TOKEN")
		if err != nil {
			return nil, err
		}
		from, err := config.RequiredString("TWILIO_FROM_NUMBER")
		if err != nil {
			return nil, err
		}
		return sms.NewTwilioSender(sid, token, from)
	case "webhook":
		url, err := config.RequiredString("SMS_WEBHOOK_URL")
		if err != nil {
			return nil, err
		}
		return sms.NewWebhookSender(url, config.String("SMS_WEBHOOK_TOKEN", "")), nil
	case "none", "":
		return sms.NewNoopSender(), nil
	default:
		return nil, fmt.Errorf("unknown SMS_PROVIDER %q", provider)
	}
}

// reminderLeads reads REMINDER_LEADS_MINUTES, e.g. "1440,60".
func reminderLeads(logger *slog.Logger) []time.Duration {
	var minutes []int
	for _, part := range config.List("REMINDER_LEADS_MINUTES", "1440,60") {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			logger.Warn("invalid reminder lead", "value", part)
			continue
		}
		minutes = append(minutes, n)
	}
	return notify.ParseLeads(minutes)
}
