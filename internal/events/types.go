package events

import "time"

// AppointmentBookedV1 is emitted once a booking has committed.
type AppointmentBookedV1 struct {
	AppointmentID   int64     `json:"appointment_id"`
	FormattedID     string    `json:"formatted_id"`
	DoctorID        int64     `json:"doctor_id"`
	DoctorName      string    `json:"doctor_name"`
	Specialty       string    `json:"specialty"`
	Hospital        string    `json:"hospital"`
	AppointmentDate string    `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	PatientName     string    `json:"patient_name"`
	PatientPhone    string    `json:"patient_phone"`
	PatientEmail    string    `json:"patient_email,omitempty"`
	PaymentMethod   string    `json:"payment_method"`
	PaymentStatus   string    `json:"payment_status"`
	AmountCents     int64     `json:"amount_cents"`
	AgentID         string    `json:"agent_id,omitempty"`
	BookedAt        time.Time `json:"booked_at"`
}

func (AppointmentBookedV1) EventType() string {
	return "appointments.appointment.booked.v1"
}

// AppointmentCancelledV1 is emitted once a cancellation has committed.
type AppointmentCancelledV1 struct {
	AppointmentID   int64     `json:"appointment_id"`
	FormattedID     string    `json:"formatted_id"`
	DoctorName      string    `json:"doctor_name"`
	Hospital        string    `json:"hospital"`
	AppointmentDate string    `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	PatientName     string    `json:"patient_name"`
	PatientPhone    string    `json:"patient_phone"`
	PatientEmail    string    `json:"patient_email,omitempty"`
	Refunded        bool      `json:"refunded"`
	RefundedCents   int64     `json:"refunded_cents,omitempty"`
	CancelledAt     time.Time `json:"cancelled_at"`
}

func (AppointmentCancelledV1) EventType() string {
	return "appointments.appointment.cancelled.v1"
}
