package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/echannel-booking/internal/audit"
	"github.com/wolfman30/echannel-booking/internal/observability/metrics"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

type auditQuerier interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

type velocityResetter interface {
	Reset(ctx context.Context, phone string) error
}

type doctorCache interface {
	Invalidate(ctx context.Context, id int64) error
}

// AdminHandler serves operator endpoints under /v1/admin.
type AdminHandler struct {
	gatherer prometheus.Gatherer
	audit    auditQuerier
	velocity velocityResetter
	doctors  doctorCache
	logger   *logging.Logger
}

// NewAdminHandler creates the admin handler. audit and velocity may be nil,
// in which case their endpoints report 501.
func NewAdminHandler(gatherer prometheus.Gatherer, trail auditQuerier, velocity velocityResetter, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{gatherer: gatherer, audit: trail, velocity: velocity, logger: logger}
}

// WithDoctorCache enables eviction of cached doctor snapshots.
func (h *AdminHandler) WithDoctorCache(cache doctorCache) *AdminHandler {
	h.doctors = cache
	return h
}

// Stats summarises the booking counters since process start.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.TakeSnapshot(h.gatherer))
}

// AuditLog lists audit rows filtered by appointment_id, actor_id, type,
// since (RFC 3339) and limit.
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "audit trail not configured", Code: "not_configured"})
		return
	}
	q := r.URL.Query()
	filter := audit.Filter{
		ActorID: q.Get("actor_id"),
		Type:    audit.EventType(q.Get("type")),
	}
	if raw := q.Get("appointment_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(w, "appointment_id", "appointment_id must be a positive integer")
			return
		}
		filter.AppointmentID = id
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "since", "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}

	rows, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit query failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "audit trail unavailable", Code: "storage_failure"})
		return
	}
	if rows == nil {
		rows = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": rows, "count": len(rows)})
}

// ResetBookingLimit clears the per-phone booking counter.
func (h *AdminHandler) ResetBookingLimit(w http.ResponseWriter, r *http.Request) {
	if h.velocity == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "booking limits not configured", Code: "not_configured"})
		return
	}
	phone := strings.TrimSpace(chi.URLParam(r, "phone"))
	if phone == "" {
		badRequest(w, "phone", "phone is required")
		return
	}
	if err := h.velocity.Reset(r.Context(), phone); err != nil {
		h.logger.Error("reset booking limit failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "booking limits unavailable", Code: "storage_failure"})
		return
	}
	h.logger.Info("booking limit reset", "phone", phone)
	w.WriteHeader(http.StatusNoContent)
}

// EvictDoctor drops a cached doctor snapshot. Whatever edits doctor records
// calls it so new bookings copy the edited name, specialty and hospital
// instead of waiting for the cache TTL.
func (h *AdminHandler) EvictDoctor(w http.ResponseWriter, r *http.Request) {
	if h.doctors == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "doctor cache not configured", Code: "not_configured"})
		return
	}
	id, ok := doctorIDParam(w, r)
	if !ok {
		return
	}
	if err := h.doctors.Invalidate(r.Context(), id); err != nil {
		h.logger.Error("evict doctor cache failed", "doctor_id", id, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "doctor cache unavailable", Code: "storage_failure"})
		return
	}
	h.logger.Info("doctor cache evicted", "doctor_id", id)
	w.WriteHeader(http.StatusNoContent)
}
