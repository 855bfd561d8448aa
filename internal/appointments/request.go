package appointments

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/echannel-booking/internal/payments"
)

const dateLayout = "2006-01-02"

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// BookRequest is what an agent submits to create an appointment.
type BookRequest struct {
	DoctorID      int64  `json:"doctor_id"`
	SlotID        *int64 `json:"slot_id,omitempty"`
	PatientName   string `json:"patient_name"`
	PatientPhone  string `json:"patient_phone"`
	PatientEmail  string `json:"patient_email,omitempty"`
	PatientNIC    string `json:"patient_nic,omitempty"`
	PatientDOB    string `json:"patient_dob,omitempty"`
	PatientGender string `json:"patient_gender,omitempty"`
	PatientAge    *int   `json:"patient_age,omitempty"`

	Date string `json:"appointment_date"`
	// Time may be 24-hour, 12-hour with AM/PM, or a range; only the start
	// is kept.
	Time string `json:"appointment_time"`

	PaymentMethod   string `json:"payment_method,omitempty"`
	AmountCents     int64  `json:"total_amount_cents"`
	TransactionID   string `json:"transaction_id,omitempty"`
	RefundEligible  bool   `json:"refund_eligible"`
	RefundableCents int64  `json:"refundable_deposit_cents,omitempty"`

	// AgentID is filled from the authenticated request, never the body.
	AgentID string `json:"-"`
}

// validBooking is a BookRequest after parsing.
type validBooking struct {
	req    BookRequest
	date   time.Time
	dob    *time.Time
	method payments.Method
}

func (r BookRequest) validate() (*validBooking, error) {
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.PatientPhone = strings.Join(strings.Fields(r.PatientPhone), "")
	r.PatientEmail = strings.TrimSpace(r.PatientEmail)
	r.PatientNIC = strings.ToUpper(strings.TrimSpace(r.PatientNIC))
	r.PatientGender = strings.ToLower(strings.TrimSpace(r.PatientGender))
	r.Time = strings.TrimSpace(r.Time)

	if r.DoctorID <= 0 {
		return nil, invalid("doctor_id", "required")
	}
	if r.SlotID != nil && *r.SlotID <= 0 {
		return nil, invalid("slot_id", "must be positive")
	}
	if r.PatientName == "" {
		return nil, invalid("patient_name", "required")
	}
	if r.PatientPhone == "" {
		return nil, invalid("patient_phone", "required")
	}
	if !phonePattern.MatchString(r.PatientPhone) {
		return nil, invalid("patient_phone", "must be 9 to 15 digits")
	}
	if r.PatientEmail != "" {
		if _, err := mail.ParseAddress(r.PatientEmail); err != nil {
			return nil, invalid("patient_email", "not a valid address")
		}
	}
	if strings.TrimSpace(r.Date) == "" {
		return nil, invalid("appointment_date", "required")
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return nil, invalid("appointment_date", "must be YYYY-MM-DD")
	}
	if r.Time == "" {
		return nil, invalid("appointment_time", "required")
	}
	if r.AmountCents <= 0 {
		return nil, invalid("total_amount_cents", "must be greater than zero")
	}
	if r.RefundableCents < 0 || r.RefundableCents > r.AmountCents {
		return nil, invalid("refundable_deposit_cents", "must be between zero and the total amount")
	}
	if r.PatientAge != nil && (*r.PatientAge < 0 || *r.PatientAge > 150) {
		return nil, invalid("patient_age", "out of range")
	}
	method, err := payments.ParseMethod(r.PaymentMethod)
	if err != nil {
		return nil, invalid("payment_method", "must be bill, cash or card")
	}

	var dob *time.Time
	if s := strings.TrimSpace(r.PatientDOB); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, invalid("patient_dob", "must be YYYY-MM-DD")
		}
		dob = &parsed
	}

	return &validBooking{req: r, date: date, dob: dob, method: method}, nil
}
