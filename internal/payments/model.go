// Package payments records how an appointment was paid for. It does not talk
// to any payment gateway; card charges are settled elsewhere and only their
// status is tracked here.
package payments

import (
	"errors"
	"strings"
	"time"
)

// Method is how the patient pays.
type Method string

const (
	// MethodBill charges the consultation to the patient's mobile bill.
	MethodBill Method = "bill"
	// MethodCash is collected by the agent at the counter.
	MethodCash Method = "cash"
	// MethodCard is settled later by an external card charge.
	MethodCard Method = "card"
)

// Status is the lifecycle of a payment row.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// ErrUnknownMethod is returned by ParseMethod for unsupported methods.
var ErrUnknownMethod = errors.New("payments: unknown payment method")

// ParseMethod accepts a method name in any case. An empty name means bill,
// the default channel for agent bookings.
func ParseMethod(raw string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return MethodBill, nil
	case MethodBill, MethodCash, MethodCard:
		return m, nil
	default:
		return "", ErrUnknownMethod
	}
}

// InitialStatus is the status a new payment row starts in. Card payments wait
// for the external charge; the others are settled at booking time.
func InitialStatus(m Method) Status {
	if m == MethodCard {
		return StatusPending
	}
	return StatusPaid
}

// Record is one payment row attached to an appointment.
type Record struct {
	ID            int64      `json:"id"`
	AppointmentID int64      `json:"appointment_id"`
	Method        Method     `json:"method"`
	Status        Status     `json:"status"`
	AmountCents   int64      `json:"amount_cents"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	RefundedCents int64      `json:"refunded_cents,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewRecord is the input to Repository.Create.
type NewRecord struct {
	AppointmentID int64
	Method        Method
	AmountCents   int64
	TransactionID string
}
