package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/echannel-booking/internal/appointments"
	"github.com/wolfman30/echannel-booking/internal/identity"
	"github.com/wolfman30/echannel-booking/internal/ledger"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

type stubAppointmentService struct {
	bookReq    appointments.BookRequest
	bookErr    error
	cancelID   int64
	withRefund bool
	cancelErr  error
	getErr     error
	listFilter appointments.ListFilter
	listErr    error
}

func (s *stubAppointmentService) Book(_ context.Context, req appointments.BookRequest) (*appointments.Appointment, error) {
	s.bookReq = req
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	return &appointments.Appointment{
		ID:          42,
		FormattedID: appointments.FormatID(42),
		Status:      appointments.StatusConfirmed,
		DoctorName:  "Dr. Perera",
		Specialty:   "Cardiology",
		Hospital:    "Asiri Central",
		Date:        time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Time:        "09:30:00",
	}, nil
}

func (s *stubAppointmentService) Cancel(_ context.Context, id int64, withRefund bool) (*appointments.CancelResult, error) {
	s.cancelID, s.withRefund = id, withRefund
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &appointments.CancelResult{
		AppointmentID: id,
		FormattedID:   appointments.FormatID(id),
		Status:        appointments.StatusCancelled,
		Refunded:      withRefund,
	}, nil
}

func (s *stubAppointmentService) Complete(_ context.Context, id int64) (*appointments.Appointment, error) {
	return &appointments.Appointment{ID: id, Status: appointments.StatusCompleted}, nil
}

func (s *stubAppointmentService) Get(_ context.Context, id int64) (*appointments.Appointment, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &appointments.Appointment{ID: id, FormattedID: appointments.FormatID(id), Status: appointments.StatusConfirmed}, nil
}

func (s *stubAppointmentService) List(_ context.Context, filter appointments.ListFilter) ([]*appointments.Appointment, error) {
	s.listFilter = filter
	return nil, s.listErr
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

const bookingBody = `{
	"doctor_id": 3,
	"slot_id": 7,
	"patient_name": "Nimal Silva",
	"patient_phone": "0771234567",
	"appointment_date": "2026-03-02",
	"appointment_time": "9:30 AM - 10:00 AM",
	"payment_method": "bill",
	"total_amount_cents": 250000,
	"agent_id": "forged"
}`

func TestCreateAppointment(t *testing.T) {
	svc := &stubAppointmentService{}
	h := NewAppointmentHandler(svc, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/v1/appointments", strings.NewReader(bookingBody))
	req = req.WithContext(identity.WithAgent(req.Context(), identity.Agent{ID: "agent-7", Role: identity.RoleAgent}))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp CreateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(42), resp.AppointmentID)
	assert.Equal(t, "APT000042", resp.FormattedID)
	assert.Equal(t, appointments.StatusConfirmed, resp.Status)
	assert.Equal(t, "Dr. Perera", resp.DoctorName)
	assert.Equal(t, "2026-03-02", resp.Date)

	assert.Equal(t, "agent-7", svc.bookReq.AgentID, "agent id comes from the token")
	require.NotNil(t, svc.bookReq.SlotID)
	assert.Equal(t, int64(7), *svc.bookReq.SlotID)
}

func TestCreateAppointmentGuestHasNoAgent(t *testing.T) {
	svc := &stubAppointmentService{}
	h := NewAppointmentHandler(svc, logging.Default())

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/v1/appointments", strings.NewReader(bookingBody)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, svc.bookReq.AgentID)
}

func TestCreateAppointmentRejectsMalformedBody(t *testing.T) {
	h := NewAppointmentHandler(&stubAppointmentService{}, logging.Default())
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/v1/appointments", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Code)
}

func TestCreateAppointmentErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&appointments.ValidationError{Field: "patient_phone", Reason: "required"}, http.StatusBadRequest, "validation_error"},
		{appointments.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
		{ledger.ErrSlotNotFound, http.StatusNotFound, "slot_not_found"},
		{ledger.ErrSlotInactive, http.StatusConflict, "slot_inactive"},
		{ledger.ErrSlotFull, http.StatusConflict, "slot_full"},
		{appointments.ErrTooManyBookings, http.StatusTooManyRequests, "booking_rate_limited"},
		{&appointments.StorageError{Op: "book", Err: errors.New("deadlock")}, http.StatusServiceUnavailable, "storage_failure"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			h := NewAppointmentHandler(&stubAppointmentService{bookErr: tc.err}, logging.Default())
			rec := httptest.NewRecorder()
			h.Create(rec, httptest.NewRequest(http.MethodPost, "/v1/appointments", strings.NewReader(bookingBody)))

			assert.Equal(t, tc.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tc.code, resp.Code)
			if tc.status >= http.StatusInternalServerError {
				assert.NotContains(t, resp.Error, "deadlock", "storage details stay in the logs")
			}
		})
	}
}

func TestStorageFailureRetryAfter(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		retryAfter string
	}{
		{name: "deadlock", err: &appointments.StorageError{Op: "book", Err: &pgconn.PgError{Code: "40P01"}}, retryAfter: "1"},
		{name: "tx timeout", err: &appointments.StorageError{Op: "cancel", Err: fmt.Errorf("commit: %w", context.DeadlineExceeded)}, retryAfter: "1"},
		{name: "constraint violation", err: &appointments.StorageError{Op: "book", Err: &pgconn.PgError{Code: "23503"}}, retryAfter: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAppointmentHandler(&stubAppointmentService{bookErr: tc.err}, logging.Default())
			rec := httptest.NewRecorder()
			h.Create(rec, httptest.NewRequest(http.MethodPost, "/v1/appointments", strings.NewReader(bookingBody)))

			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Equal(t, "storage_failure", decodeError(t, rec).Code)
			assert.Equal(t, tc.retryAfter, rec.Header().Get("Retry-After"))
		})
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &appointments.ValidationError{Field: "appointment_date", Reason: "must be YYYY-MM-DD"})
	h := NewAppointmentHandler(&stubAppointmentService{bookErr: err}, logging.Default())
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/v1/appointments", strings.NewReader(bookingBody)))

	assert.Equal(t, "appointment_date", decodeError(t, rec).Field)
}

func TestGetAppointmentAcceptsFormattedID(t *testing.T) {
	h := NewAppointmentHandler(&stubAppointmentService{}, logging.Default())
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/v1/appointments/APT000042", nil), "appointmentID", "APT000042")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var appt appointments.Appointment
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&appt))
	assert.Equal(t, int64(42), appt.ID)
}

func TestGetAppointmentErrors(t *testing.T) {
	h := NewAppointmentHandler(&stubAppointmentService{getErr: appointments.ErrAppointmentNotFound}, logging.Default())

	rec := httptest.NewRecorder()
	h.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/appointments/x", nil), "appointmentID", "not-an-id"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/appointments/9", nil), "appointmentID", "9"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", decodeError(t, rec).Code)
}

func TestListAppointmentsParsesFilters(t *testing.T) {
	svc := &stubAppointmentService{}
	h := NewAppointmentHandler(svc, logging.Default())
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/v1/appointments?doctor_id=3&date=2026-03-02&status=Confirmed&limit=10&offset=20", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), svc.listFilter.DoctorID)
	require.NotNil(t, svc.listFilter.Date)
	assert.Equal(t, "2026-03-02", svc.listFilter.Date.Format("2006-01-02"))
	assert.Equal(t, appointments.StatusConfirmed, svc.listFilter.Status)
	assert.Equal(t, 10, svc.listFilter.Limit)
	assert.Equal(t, 20, svc.listFilter.Offset)

	var resp ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotNil(t, resp.Appointments)
	assert.Zero(t, resp.Count)
}

func TestListAppointmentsRejectsBadParams(t *testing.T) {
	h := NewAppointmentHandler(&stubAppointmentService{}, logging.Default())
	for _, query := range []string{"doctor_id=abc", "date=02-03-2026", "limit=-1", "offset=x"} {
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/v1/appointments?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestCancelAppointment(t *testing.T) {
	svc := &stubAppointmentService{}
	h := NewAppointmentHandler(svc, logging.Default())
	req := httptest.NewRequest(http.MethodPost, "/v1/appointments/42/cancel", strings.NewReader(`{"with_refund": true}`))
	rec := httptest.NewRecorder()
	h.Cancel(rec, withURLParam(req, "appointmentID", "42"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), svc.cancelID)
	assert.True(t, svc.withRefund)

	var resp appointments.CancelResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, appointments.StatusCancelled, resp.Status)
	assert.True(t, resp.Refunded)
}

func TestCancelAppointmentWithoutBody(t *testing.T) {
	svc := &stubAppointmentService{}
	h := NewAppointmentHandler(svc, logging.Default())
	rec := httptest.NewRecorder()
	h.Cancel(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/v1/appointments/42/cancel", nil), "appointmentID", "42"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.withRefund)
}

func TestCancelAppointmentConflicts(t *testing.T) {
	for err, code := range map[error]string{
		appointments.ErrAlreadyCancelled:  "already_cancelled",
		appointments.ErrInvalidTransition: "invalid_transition",
	} {
		h := NewAppointmentHandler(&stubAppointmentService{cancelErr: err}, logging.Default())
		rec := httptest.NewRecorder()
		h.Cancel(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/v1/appointments/42/cancel", nil), "appointmentID", "42"))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, code, decodeError(t, rec).Code)
	}
}

func TestCompleteAppointment(t *testing.T) {
	h := NewAppointmentHandler(&stubAppointmentService{}, logging.Default())
	rec := httptest.NewRecorder()
	h.Complete(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/v1/appointments/42/complete", nil), "appointmentID", "42"))

	require.Equal(t, http.StatusOK, rec.Code)
	var appt appointments.Appointment
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&appt))
	assert.Equal(t, appointments.StatusCompleted, appt.Status)
}
