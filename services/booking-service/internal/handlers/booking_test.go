package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/memstore"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/model"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	s := memstore.New()
	s.PutOrganization(model.Organization{ID: "org-1", Name: "Studio", TimeZone: "UTC", Currency: "EUR"})
	s.PutCalendar(model.Calendar{ID: "cal-1", OrganizationID: "org-1",
		Owner:        model.Owner{Type: model.OwnerOrganization, ID: "org-1"},
		WorkingHours: model.WorkingHours{"monday": {{Start: "09:00", End: "11:00"}}}})
	s.PutCalendar(model.Calendar{ID: "cal-m1", OrganizationID: "org-1",
		Owner:        model.Owner{Type: model.OwnerMember, ID: "m-1"},
		WorkingHours: model.WorkingHours{"monday": {{Start: "13:00", End: "15:00"}}}})
	s.PutService(model.Service{ID: "svc-1", OrganizationID: "org-1", Name: "Consult", Price: 4000, DurationMinutes: 60})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	engine := booking.NewEngine(s, nil, logger, booking.WithClock(clock))

	mux := http.NewServeMux()
	NewBookingHandler(engine, logger).Register(mux)
	return mux
}

func do(mux http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSlotsAndBookFlow(t *testing.T) {
	mux := newTestMux(t)

	rec := do(mux, http.MethodGet, "/api/v1/public/slots?organization_id=org-1&service_id=svc-1&date=2026-03-02", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var slots []slotItem
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	if len(slots) != 2 || slots[0].StartTime != "2026-03-02T09:00:00Z" || slots[1].EndTime != "2026-03-02T11:00:00Z" {
		t.Fatalf("unexpected slots: %+v", slots)
	}

	book := map[string]any{
		"organization_id": "org-1",
		"service_id":      "svc-1",
		"start_time":      "2026-03-02T09:00:00Z",
		"customer_email":  "Ana@Example.com",
		"customer_name":   "Ana",
	}
	rec = do(mux, http.MethodPost, "/api/v1/public/book", book)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created bookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.AppointmentID == "" {
		t.Fatalf("expected appointment id, got %s (%v)", rec.Body.String(), err)
	}
	if created.Status != string(model.StatusPending) {
		t.Fatalf("expected PENDING, got %s", created.Status)
	}

	rec = do(mux, http.MethodPost, "/api/v1/public/book", book)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for double booking, got %d", rec.Code)
	}

	rec = do(mux, http.MethodGet, "/api/v1/public/slots?organization_id=org-1&service_id=svc-1&date=2026-03-02", nil)
	slots = nil
	_ = json.Unmarshal(rec.Body.Bytes(), &slots)
	if len(slots) != 1 || slots[0].StartTime != "2026-03-02T10:00:00Z" {
		t.Fatalf("expected only the 10:00 slot, got %+v", slots)
	}

	rec = do(mux, http.MethodGet, "/api/v1/appointments?organization_id=org-1", nil)
	var items []appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil || len(items) != 1 {
		t.Fatalf("expected one appointment, got %s", rec.Body.String())
	}
	if items[0].Fee != 4000 || items[0].AssigneeType != string(model.OwnerOrganization) {
		t.Fatalf("unexpected item: %+v", items[0])
	}

	rec = do(mux, http.MethodPost, "/api/v1/appointments/cancel", map[string]string{
		"organization_id": "org-1", "appointment_id": created.AppointmentID, "reason": "sick",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(mux, http.MethodPost, "/api/v1/appointments/complete", map[string]string{
		"organization_id": "org-1", "appointment_id": created.AppointmentID,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 completing a cancelled appointment, got %d", rec.Code)
	}
}

func TestMemberAssigneeWithAndWithoutType(t *testing.T) {
	mux := newTestMux(t)

	for _, query := range []string{"assignee_id=m-1", "assignee_id=m-1&assignee_type=member"} {
		rec := do(mux, http.MethodGet, "/api/v1/public/slots?organization_id=org-1&service_id=svc-1&date=2026-03-02&"+query, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", query, rec.Code, rec.Body.String())
		}
		var slots []slotItem
		if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
			t.Fatalf("decode slots: %v", err)
		}
		if len(slots) != 2 || slots[0].StartTime != "2026-03-02T13:00:00Z" {
			t.Fatalf("%s: expected the member's 13:00 and 14:00 slots, got %+v", query, slots)
		}
	}

	rec := do(mux, http.MethodPost, "/api/v1/public/book", map[string]string{
		"organization_id": "org-1",
		"service_id":      "svc-1",
		"assignee_id":     "m-1",
		"start_time":      "2026-03-02T13:00:00Z",
		"customer_email":  "ana@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Organization hours do not apply to the member.
	rec = do(mux, http.MethodPost, "/api/v1/public/book", map[string]string{
		"organization_id": "org-1",
		"service_id":      "svc-1",
		"assignee_id":     "m-1",
		"assignee_type":   "member",
		"start_time":      "2026-03-02T09:00:00Z",
		"customer_email":  "bo@example.com",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 outside the member's hours, got %d", rec.Code)
	}

	rec = do(mux, http.MethodGet, "/api/v1/appointments?organization_id=org-1", nil)
	var items []appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil || len(items) != 1 {
		t.Fatalf("expected one appointment, got %s", rec.Body.String())
	}
	if items[0].AssigneeType != string(model.OwnerMember) || items[0].AssigneeID != "m-1" {
		t.Fatalf("expected member assignee, got %+v", items[0])
	}
}

func TestErrorMapping(t *testing.T) {
	mux := newTestMux(t)

	cases := []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"bad date", http.MethodGet, "/api/v1/public/slots?organization_id=org-1&service_id=svc-1&date=03/02/2026", nil, http.StatusBadRequest},
		{"missing org", http.MethodGet, "/api/v1/public/slots?service_id=svc-1&date=2026-03-02", nil, http.StatusBadRequest},
		{"unknown service", http.MethodGet, "/api/v1/public/slots?organization_id=org-1&service_id=nope&date=2026-03-02", nil, http.StatusNotFound},
		{"wrong method", http.MethodPost, "/api/v1/public/slots", nil, http.StatusMethodNotAllowed},
		{"bad start", http.MethodPost, "/api/v1/public/book", map[string]string{"organization_id": "org-1", "service_id": "svc-1", "start_time": "tomorrow"}, http.StatusBadRequest},
		{"outside hours", http.MethodPost, "/api/v1/public/book", map[string]string{
			"organization_id": "org-1", "service_id": "svc-1", "start_time": "2026-03-02T10:30:00Z", "customer_email": "a@b.test",
		}, http.StatusConflict},
		{"unknown appointment", http.MethodPost, "/api/v1/appointments/cancel", map[string]string{"organization_id": "org-1", "appointment_id": "nope"}, http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/v1/appointments?organization_id=org-1&limit=x", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := do(mux, tc.method, tc.target, tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestOrganizationHeaderWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?organization_id=query", nil)
	req.Header.Set("X-Organization-Id", "header")
	if got := organizationID(req, "body"); got != "header" {
		t.Fatalf("expected header, got %s", got)
	}
	req.Header.Del("X-Organization-Id")
	if got := organizationID(req, "body"); got != "body" {
		t.Fatalf("expected body, got %s", got)
	}
	if got := organizationID(req, ""); got != "query" {
		t.Fatalf("expected query, got %s", got)
	}
}
