// Package catalog serves the read-mostly doctor and availability data that
// bookings are made against.
package catalog

import (
	"errors"
	"time"
)

// ErrDoctorNotFound is returned when a doctor id has no catalog entry.
var ErrDoctorNotFound = errors.New("catalog: doctor not found")

// Doctor is the bookable practitioner. Bookings copy Name, Specialty and
// Hospital onto the appointment so later edits here do not rewrite history.
type Doctor struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Hospital  string `json:"hospital"`
	FeeCents  int64  `json:"fee_cents"`
}

// Slot is one availability window with a fixed appointment capacity.
type Slot struct {
	ID                 int64     `json:"id"`
	DoctorID           int64     `json:"doctor_id"`
	Date               time.Time `json:"date"`
	StartTime          string    `json:"start_time"`
	EndTime            string    `json:"end_time"`
	MaxAppointments    int       `json:"max_appointments"`
	BookedAppointments int       `json:"booked_appointments"`
	IsActive           bool      `json:"is_active"`
}

// Remaining is the number of appointments the slot can still accept.
func (s Slot) Remaining() int {
	if !s.IsActive || s.BookedAppointments >= s.MaxAppointments {
		return 0
	}
	return s.MaxAppointments - s.BookedAppointments
}

// DoctorFilter narrows ListDoctors. Empty fields match everything.
type DoctorFilter struct {
	Name      string
	Specialty string
	Hospital  string
	Limit     int
	Offset    int
}
