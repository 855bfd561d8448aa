package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/echannel-booking/internal/appointments"
	"github.com/wolfman30/echannel-booking/internal/identity"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

const maxBodyBytes = 64 << 10

// AppointmentService is the slice of appointments.Service the handler uses.
type AppointmentService interface {
	Book(ctx context.Context, req appointments.BookRequest) (*appointments.Appointment, error)
	Cancel(ctx context.Context, id int64, withRefund bool) (*appointments.CancelResult, error)
	Complete(ctx context.Context, id int64) (*appointments.Appointment, error)
	Get(ctx context.Context, id int64) (*appointments.Appointment, error)
	List(ctx context.Context, filter appointments.ListFilter) ([]*appointments.Appointment, error)
}

// AppointmentHandler serves /v1/appointments.
type AppointmentHandler struct {
	service AppointmentService
	logger  *logging.Logger
}

// NewAppointmentHandler creates the appointment handler.
func NewAppointmentHandler(service AppointmentService, logger *logging.Logger) *AppointmentHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentHandler{service: service, logger: logger}
}

// CreateResponse is returned by POST /v1/appointments.
type CreateResponse struct {
	AppointmentID int64               `json:"appointment_id"`
	FormattedID   string              `json:"formatted_id"`
	Status        appointments.Status `json:"status"`
	DoctorName    string              `json:"doctor_name"`
	Specialty     string              `json:"specialty"`
	Hospital      string              `json:"hospital"`
	Date          string              `json:"appointment_date"`
	Time          string              `json:"appointment_time"`
}

type cancelRequest struct {
	WithRefund bool `json:"with_refund"`
}

// ListResponse wraps appointment listings.
type ListResponse struct {
	Appointments []*appointments.Appointment `json:"appointments"`
	Count        int                         `json:"count"`
}

// Create books an appointment. The acting agent comes from the token, never
// the body.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req appointments.BookRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		badRequest(w, "", "request body must be a JSON booking")
		return
	}
	req.AgentID = identity.AgentID(r.Context())

	appt, err := h.service.Book(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateResponse{
		AppointmentID: appt.ID,
		FormattedID:   appt.FormattedID,
		Status:        appt.Status,
		DoctorName:    appt.DoctorName,
		Specialty:     appt.Specialty,
		Hospital:      appt.Hospital,
		Date:          appt.DateString(),
		Time:          appt.Time,
	})
}

// Get returns one appointment by numeric or formatted id.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := appointments.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	appt, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// List filters appointments by doctor_id, date, status, limit and offset.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter appointments.ListFilter

	if raw := q.Get("doctor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(w, "doctor_id", "doctor_id must be a positive integer")
			return
		}
		filter.DoctorID = id
	}
	if raw := q.Get("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(w, "date", "date must be YYYY-MM-DD")
			return
		}
		filter.Date = &date
	}
	filter.Status = appointments.Status(strings.ToLower(q.Get("status")))
	filter.AgentID = q.Get("agent_id")

	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []*appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Appointments: list, Count: len(list)})
}

// Cancel cancels an appointment. The body is optional; without it no refund
// is issued.
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := appointments.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "", "request body must be JSON")
		return
	}

	result, err := h.service.Cancel(r.Context(), id, req.WithRefund)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Complete marks a confirmed appointment as attended.
func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := appointments.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	appt, err := h.service.Complete(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(w, name, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
