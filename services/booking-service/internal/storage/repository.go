package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/apptcrm/libs/db"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	pool *db.Pool
}

var _ booking.Store = (*Repository)(nil)

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetOrganization(ctx context.Context, organizationID string) (model.Organization, error) {
	var o model.Organization
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, time_zone, buffer_minutes, currency,
			COALESCE(contact_email, ''), COALESCE(contact_phone, ''), COALESCE(address, ''), created_at
		FROM organizations
		WHERE id = $1
	`, organizationID).Scan(&o.ID, &o.Name, &o.TimeZone, &o.BufferMinutes, &o.Currency,
		&o.ContactEmail, &o.ContactPhone, &o.Address, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Organization{}, errs.NotFound("organization", organizationID)
	}
	return o, classify("get organization", err)
}

func (r *Repository) GetCalendarByOwner(ctx context.Context, organizationID string, owner model.Owner) (model.Calendar, error) {
	var c model.Calendar
	var hours []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, owner_type, owner_id, name, working_hours, buffer_minutes, COALESCE(time_zone, '')
		FROM calendars
		WHERE organization_id = $1 AND owner_type = $2 AND owner_id = $3
	`, organizationID, string(owner.Type), owner.ID).Scan(
		&c.ID, &c.OrganizationID, &c.Owner.Type, &c.Owner.ID, &c.Name, &hours, &c.BufferMinutes, &c.TimeZone)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Calendar{}, errs.NotFound("calendar", owner.ID)
	}
	if err != nil {
		return model.Calendar{}, classify("get calendar", err)
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &c.WorkingHours); err != nil {
			return model.Calendar{}, errs.Invalid("calendar.working_hours", err.Error())
		}
	}
	return c, nil
}

func (r *Repository) GetService(ctx context.Context, organizationID, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, owner_type, owner_id, name, price, duration_minutes, sort_order
		FROM services
		WHERE id = $1 AND organization_id = $2
	`, serviceID, organizationID).Scan(&s.ID, &s.OrganizationID, &s.Owner.Type, &s.Owner.ID, &s.Name, &s.Price, &s.DurationMinutes, &s.Order)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, errs.NotFound("service", serviceID)
	}
	return s, classify("get service", err)
}

func (r *Repository) GetCustomer(ctx context.Context, organizationID, customerID string) (model.Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `
		SELECT id, organization_id, email, name, phone, fields, created_at
		FROM customers
		WHERE id = $1 AND organization_id = $2
	`, customerID, organizationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Customer{}, errs.NotFound("customer", customerID)
	}
	return c, classify("get customer", err)
}

// FindOrCreateCustomer relies on the unique (organization_id, lower(email)) index, so
// concurrent first bookings by the same email converge on one row.
func (r *Repository) FindOrCreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	fields, err := json.Marshal(c.Fields)
	if err != nil {
		return model.Customer{}, errs.Invalid("customer.fields", err.Error())
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO customers (id, organization_id, email, name, phone, fields, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (organization_id, lower(email)) DO NOTHING
	`, c.ID, c.OrganizationID, c.Email, c.Name, c.Phone, fields, c.CreatedAt)
	if err != nil {
		return model.Customer{}, classify("create customer", err)
	}
	got, err := scanCustomer(r.pool.QueryRow(ctx, `
		SELECT id, organization_id, email, name, phone, fields, created_at
		FROM customers
		WHERE organization_id = $1 AND lower(email) = lower($2)
	`, c.OrganizationID, c.Email))
	return got, classify("find customer", err)
}

func scanCustomer(row pgx.Row) (model.Customer, error) {
	var c model.Customer
	var fields []byte
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.Email, &c.Name, &c.Phone, &fields, &c.CreatedAt); err != nil {
		return model.Customer{}, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &c.Fields); err != nil {
			return model.Customer{}, err
		}
	}
	return c, nil
}

func (r *Repository) ListActiveAppointments(ctx context.Context, organizationID string, assignee model.Owner, from, to time.Time) ([]model.Appointment, error) {
	appts, err := listActiveAppointments(ctx, r.pool, organizationID, assignee, from, to)
	return appts, classify("list appointments", err)
}

func (r *Repository) ListTimeOff(ctx context.Context, organizationID string, owner model.Owner, from, to time.Time) ([]model.TimeOff, error) {
	offs, err := listTimeOff(ctx, r.pool, organizationID, owner, from, to)
	return offs, classify("list time off", err)
}

// Reserve serializes reservations per assignee with a transaction-scoped advisory lock,
// re-verifies inside the transaction and inserts. The exclusion constraint on appointments
// rejects any overlap that slips past the lock (23P01 -> ErrSlotUnavailable).
func (r *Repository) Reserve(ctx context.Context, appt model.Appointment, verify booking.VerifyFunc) error {
	err := r.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
			appt.OrganizationID+"|"+string(appt.Assignee.Type)+"|"+appt.Assignee.ID); err != nil {
			return err
		}
		if err := verify(ctx, txSource{tx: tx}); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO appointments
				(id, organization_id, assignee_type, assignee_id, customer_id, service_id, title, description,
				 start_time, end_time, blocked_until, duration_minutes, buffer_minutes, fee, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`, appt.ID, appt.OrganizationID, string(appt.Assignee.Type), appt.Assignee.ID, appt.CustomerID, appt.ServiceID,
			appt.Title, appt.Description, appt.StartTime, appt.EndTime(),
			appt.EndTime().Add(time.Duration(appt.BufferMinutes)*time.Minute),
			appt.DurationMinutes, appt.BufferMinutes, appt.Fee, string(appt.Status), appt.CreatedAt)
		return err
	})
	return classify("reserve appointment", err)
}

// txSource exposes the obstruction queries inside the reservation transaction.
type txSource struct {
	tx pgx.Tx
}

func (s txSource) ListActiveAppointments(ctx context.Context, organizationID string, assignee model.Owner, from, to time.Time) ([]model.Appointment, error) {
	return listActiveAppointments(ctx, s.tx, organizationID, assignee, from, to)
}

func (s txSource) ListTimeOff(ctx context.Context, organizationID string, owner model.Owner, from, to time.Time) ([]model.TimeOff, error) {
	return listTimeOff(ctx, s.tx, organizationID, owner, from, to)
}

const appointmentColumns = `id, organization_id, assignee_type, assignee_id, customer_id, service_id,
	COALESCE(title, ''), COALESCE(description, ''), start_time, duration_minutes, buffer_minutes, fee, status,
	cancelled_at, COALESCE(cancellation_reason, ''), completed_at, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Assignee.Type, &a.Assignee.ID, &a.CustomerID, &a.ServiceID,
		&a.Title, &a.Description, &a.StartTime, &a.DurationMinutes, &a.BufferMinutes, &a.Fee, &status,
		&a.CancelledAt, &a.CancelReason, &a.CompletedAt, &a.CreatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	if st, ok := model.ParseStatus(status); ok {
		a.Status = st
	} else {
		a.Status = model.Status(status)
	}
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func listActiveAppointments(ctx context.Context, q querier, organizationID string, assignee model.Owner, from, to time.Time) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE organization_id = $1
			AND assignee_type = $2
			AND assignee_id = $3
			AND status <> 'CANCELLED'
			AND start_time < $5
			AND end_time > $4
		ORDER BY start_time ASC
	`, organizationID, string(assignee.Type), assignee.ID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func listTimeOff(ctx context.Context, q querier, organizationID string, owner model.Owner, from, to time.Time) ([]model.TimeOff, error) {
	rows, err := q.Query(ctx, `
		SELECT id, organization_id, owner_type, owner_id, start_at, end_at, COALESCE(reason, ''), COALESCE(created_by, '')
		FROM time_off
		WHERE organization_id = $1
			AND owner_type = $2
			AND owner_id = $3
			AND start_at < $5
			AND end_at > $4
		ORDER BY start_at ASC
	`, organizationID, string(owner.Type), owner.ID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offs []model.TimeOff
	for rows.Next() {
		var t model.TimeOff
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Owner.Type, &t.Owner.ID, &t.StartAt, &t.EndAt, &t.Reason, &t.CreatedBy); err != nil {
			return nil, err
		}
		offs = append(offs, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return offs, nil
}

func (r *Repository) GetAppointment(ctx context.Context, organizationID, appointmentID string) (model.Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND organization_id = $2
	`, appointmentID, organizationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, errs.NotFound("appointment", appointmentID)
	}
	return a, classify("get appointment", err)
}

func (r *Repository) TransitionAppointment(ctx context.Context, organizationID, appointmentID string, fn booking.TransitionFunc) (model.Appointment, error) {
	var out model.Appointment
	err := r.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		a, err := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE id = $1 AND organization_id = $2
			FOR UPDATE
		`, appointmentID, organizationID))
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("appointment", appointmentID)
		}
		if err != nil {
			return err
		}
		changed, err := fn(&a)
		if err != nil {
			return err
		}
		out = a
		if !changed {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE appointments
			SET status = $3,
				cancelled_at = $4,
				cancellation_reason = NULLIF($5, ''),
				completed_at = $6
			WHERE id = $1 AND organization_id = $2
		`, a.ID, organizationID, string(a.Status), a.CancelledAt, a.CancelReason, a.CompletedAt)
		return err
	})
	if err != nil {
		return model.Appointment{}, classify("transition appointment", err)
	}
	return out, nil
}

func (r *Repository) ListAppointments(ctx context.Context, organizationID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE organization_id = $1
		ORDER BY start_time DESC, id DESC
		LIMIT $2
	`, organizationID, limit)
	if err != nil {
		return nil, classify("list appointments", err)
	}
	appts, err := collectAppointments(rows)
	return appts, classify("list appointments", err)
}
