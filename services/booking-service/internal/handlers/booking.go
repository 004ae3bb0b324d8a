package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptcrm/libs/httpx"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
)

// Engine is the subset of *booking.Engine the HTTP surface needs.
type Engine interface {
	ListAvailableSlots(ctx context.Context, q booking.SlotQuery) ([]availability.Slot, error)
	BookAppointment(ctx context.Context, req booking.BookRequest) (booking.BookResult, error)
	CancelAppointment(ctx context.Context, organizationID, appointmentID, reason string) (model.Appointment, error)
	CompleteAppointment(ctx context.Context, organizationID, appointmentID string) (model.Appointment, error)
	ListAppointments(ctx context.Context, organizationID string, limit int) ([]model.Appointment, error)
}

type BookingHandler struct {
	engine Engine
	logger *slog.Logger
}

func NewBookingHandler(engine Engine, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, logger: logger}
}

// Register mounts the public and organization routes on mux.
func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/book", h.Book)
	mux.HandleFunc("/api/v1/appointments", h.List)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/appointments/complete", h.Complete)
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type bookRequest struct {
	OrganizationID string            `json:"organization_id"`
	ServiceID      string            `json:"service_id"`
	AssigneeType   string            `json:"assignee_type"`
	AssigneeID     string            `json:"assignee_id"`
	StartTime      string            `json:"start_time"`
	CustomerID     string            `json:"customer_id"`
	CustomerEmail  string            `json:"customer_email"`
	CustomerName   string            `json:"customer_name"`
	CustomerPhone  string            `json:"customer_phone"`
	CustomFields   map[string]string `json:"custom_fields"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
}

type bookResponse struct {
	AppointmentID string `json:"appointment_id"`
	CustomerID    string `json:"customer_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
}

type transitionRequest struct {
	OrganizationID string `json:"organization_id"`
	AppointmentID  string `json:"appointment_id"`
	Reason         string `json:"reason"`
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	AssigneeType  string `json:"assignee_type"`
	AssigneeID    string `json:"assignee_id"`
	CustomerID    string `json:"customer_id"`
	ServiceID     string `json:"service_id"`
	Title         string `json:"title,omitempty"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Fee           int64  `json:"fee"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CancelReason  string `json:"cancellation_reason,omitempty"`
	CompletedAt   string `json:"completed_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	q := r.URL.Query()
	slots, err := h.engine.ListAvailableSlots(r.Context(), booking.SlotQuery{
		OrganizationID: strings.TrimSpace(q.Get("organization_id")),
		ServiceID:      strings.TrimSpace(q.Get("service_id")),
		Assignee:       ownerFrom(q.Get("assignee_type"), q.Get("assignee_id")),
		Date:           strings.TrimSpace(q.Get("date")),
	})
	if err != nil {
		h.writeEngineError(r.Context(), w, "list slots", err)
		return
	}

	resp := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "start_time must be RFC3339")
		return
	}

	res, err := h.engine.BookAppointment(r.Context(), booking.BookRequest{
		OrganizationID: strings.TrimSpace(req.OrganizationID),
		ServiceID:      strings.TrimSpace(req.ServiceID),
		Assignee:       ownerFrom(req.AssigneeType, req.AssigneeID),
		StartTime:      start,
		CustomerID:     strings.TrimSpace(req.CustomerID),
		Customer: booking.CustomerInput{
			Email:  strings.TrimSpace(req.CustomerEmail),
			Name:   strings.TrimSpace(req.CustomerName),
			Phone:  strings.TrimSpace(req.CustomerPhone),
			Fields: req.CustomFields,
		},
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeEngineError(r.Context(), w, "book appointment", err)
		return
	}

	h.logger.InfoContext(r.Context(), "appointment booked",
		"appointment_id", res.AppointmentID,
		"organization_id", req.OrganizationID,
		"start_time", res.StartTime.Format(time.RFC3339),
	)
	httpx.WriteJSON(w, http.StatusCreated, bookResponse{
		AppointmentID: res.AppointmentID,
		CustomerID:    res.CustomerID,
		StartTime:     res.StartTime.UTC().Format(time.RFC3339),
		EndTime:       res.EndTime.UTC().Format(time.RFC3339),
		Status:        string(res.Status),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	orgID := organizationID(r, "")
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = n
	}

	appts, err := h.engine.ListAppointments(r.Context(), orgID, limit)
	if err != nil {
		h.writeEngineError(r.Context(), w, "list appointments", err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toItem(a))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, req transitionRequest) (model.Appointment, error) {
		return h.engine.CancelAppointment(ctx, req.OrganizationID, req.AppointmentID, req.Reason)
	})
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, req transitionRequest) (model.Appointment, error) {
		return h.engine.CompleteAppointment(ctx, req.OrganizationID, req.AppointmentID)
	})
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, transitionRequest) (model.Appointment, error)) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	req.OrganizationID = organizationID(r, req.OrganizationID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)

	appt, err := apply(r.Context(), req)
	if err != nil {
		h.writeEngineError(r.Context(), w, "update appointment", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toItem(appt))
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func (h *BookingHandler) writeEngineError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", verr.Error())
	case errors.Is(err, errs.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, errs.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, errs.ErrSlotUnavailable):
		httpx.WriteError(w, http.StatusConflict, "slot_unavailable", "requested time is no longer available")
	case errors.Is(err, errs.ErrTransientStore):
		h.logger.WarnContext(ctx, op+" failed", "err", err)
		w.Header().Set("Retry-After", "1")
		httpx.WriteError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "please retry")
	default:
		h.logger.ErrorContext(ctx, op+" failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// organizationID prefers the X-Organization-Id header, then the body value, then the query.
func organizationID(r *http.Request, fromBody string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Organization-Id")); v != "" {
		return v
	}
	if v := strings.TrimSpace(fromBody); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("organization_id"))
}

func ownerFrom(kind, id string) model.Owner {
	return model.Owner{
		Type: model.OwnerType(strings.ToLower(strings.TrimSpace(kind))),
		ID:   strings.TrimSpace(id),
	}
}

func toItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID: a.ID,
		AssigneeType:  string(a.Assignee.Type),
		AssigneeID:    a.Assignee.ID,
		CustomerID:    a.CustomerID,
		ServiceID:     a.ServiceID,
		Title:         a.Title,
		StartTime:     a.StartTime.UTC().Format(time.RFC3339),
		EndTime:       a.EndTime().UTC().Format(time.RFC3339),
		Fee:           a.Fee,
		Status:        string(a.Status),
		CancelReason:  a.CancelReason,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.CancelledAt != nil {
		item.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	if a.CompletedAt != nil {
		item.CompletedAt = a.CompletedAt.UTC().Format(time.RFC3339)
	}
	return item
}
