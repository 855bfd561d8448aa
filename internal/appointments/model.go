// Package appointments turns slot capacity into confirmed appointments and
// reverses them on cancellation.
package appointments

import (
	"time"

	"github.com/wolfman30/echannel-booking/internal/payments"
)

// Appointment is a booking of a patient with a doctor. Rows are never
// deleted; cancellation is a status.
type Appointment struct {
	ID          int64  `json:"appointment_id"`
	FormattedID string `json:"formatted_id"`

	PatientName   string     `json:"patient_name"`
	PatientPhone  string     `json:"patient_phone"`
	PatientEmail  string     `json:"patient_email,omitempty"`
	PatientNIC    string     `json:"patient_nic,omitempty"`
	PatientDOB    *time.Time `json:"patient_dob,omitempty"`
	PatientGender string     `json:"patient_gender,omitempty"`
	PatientAge    *int       `json:"patient_age,omitempty"`

	DoctorID int64  `json:"doctor_id"`
	SlotID   *int64 `json:"slot_id,omitempty"`
	// AgentID is the acting user; empty for guest bookings.
	AgentID string `json:"agent_id,omitempty"`

	Date time.Time `json:"appointment_date"`
	Time string    `json:"appointment_time"`

	Status          Status          `json:"status"`
	PaymentMethod   payments.Method `json:"payment_method"`
	AmountCents     int64           `json:"total_amount_cents"`
	RefundEligible  bool            `json:"refund_eligible"`
	RefundableCents int64           `json:"refundable_deposit_cents,omitempty"`

	// Doctor snapshot taken at booking time.
	DoctorName string `json:"doctor_name"`
	Specialty  string `json:"specialty"`
	Hospital   string `json:"hospital"`

	Payments []payments.Record `json:"payments,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DateString is the appointment date as YYYY-MM-DD.
func (a *Appointment) DateString() string {
	return a.Date.Format(dateLayout)
}

// CancelResult is returned by Cancel.
type CancelResult struct {
	AppointmentID int64  `json:"appointment_id"`
	FormattedID   string `json:"formatted_id"`
	Status        Status `json:"status"`
	Refunded      bool   `json:"refunded"`
	RefundedCents int64  `json:"refunded_cents,omitempty"`
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	DoctorID int64
	Date     *time.Time
	Status   Status
	AgentID  string
	Limit    int
	Offset   int
}
