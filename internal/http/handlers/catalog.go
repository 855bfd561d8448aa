package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/echannel-booking/internal/catalog"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

// CatalogHandler serves the doctor list and availability.
type CatalogHandler struct {
	repo   catalog.Repository
	logger *logging.Logger
}

// NewCatalogHandler creates the catalog handler.
func NewCatalogHandler(repo catalog.Repository, logger *logging.Logger) *CatalogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CatalogHandler{repo: repo, logger: logger}
}

// SlotView is an availability slot with the capacity left.
type SlotView struct {
	catalog.Slot
	Remaining int `json:"remaining"`
}

func (h *CatalogHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.DoctorFilter{
		Name:      q.Get("name"),
		Specialty: q.Get("specialty"),
		Hospital:  q.Get("hospital"),
	}
	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}

	doctors, err := h.repo.ListDoctors(r.Context(), filter)
	if err != nil {
		h.logger.Error("list doctors failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "catalog unavailable", Code: "storage_failure"})
		return
	}
	if doctors == nil {
		doctors = []catalog.Doctor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": doctors, "count": len(doctors)})
}

func (h *CatalogHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := doctorIDParam(w, r)
	if !ok {
		return
	}
	doctor, err := h.repo.GetDoctor(r.Context(), id)
	if err != nil {
		h.catalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doctor)
}

// ListAvailability returns the doctor's active slots on ?date=, which
// defaults to today (UTC).
func (h *CatalogHandler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := doctorIDParam(w, r)
	if !ok {
		return
	}
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(w, "date", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	if _, err := h.repo.GetDoctor(r.Context(), id); err != nil {
		h.catalogError(w, err)
		return
	}
	slots, err := h.repo.ListAvailability(r.Context(), id, date)
	if err != nil {
		h.catalogError(w, err)
		return
	}
	views := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		views = append(views, SlotView{Slot: s, Remaining: s.Remaining()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doctor_id": id,
		"date":      date.Format("2006-01-02"),
		"slots":     views,
	})
}

func (h *CatalogHandler) catalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrDoctorNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "doctor_not_found"})
		return
	}
	h.logger.Error("catalog read failed", "error", err)
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "catalog unavailable", Code: "storage_failure"})
}

func doctorIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "doctorID"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "doctor_id", "doctor id must be a positive integer")
		return 0, false
	}
	return id, true
}
