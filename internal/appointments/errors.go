package appointments

import (
	"errors"
	"fmt"

	"github.com/wolfman30/echannel-booking/internal/catalog"
	"github.com/wolfman30/echannel-booking/internal/ledger"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("appointments: invalid request")
	// ErrDoctorNotFound is the catalog's not-found error.
	ErrDoctorNotFound = catalog.ErrDoctorNotFound
	// Slot rejections come straight from the ledger.
	ErrSlotNotFound = ledger.ErrSlotNotFound
	ErrSlotInactive = ledger.ErrSlotInactive
	ErrSlotFull     = ledger.ErrSlotFull

	ErrAppointmentNotFound = errors.New("appointments: appointment not found")
	ErrAlreadyCancelled    = errors.New("appointments: appointment already cancelled")
	ErrInvalidTransition   = errors.New("appointments: invalid status transition")
	ErrTooManyBookings     = errors.New("appointments: booking limit reached for patient phone")
	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("appointments: storage failure")
)

// ValidationError names the offending request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("appointments: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StorageError wraps a failure of the atomic write. Nothing the operation
// wrote is visible after it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("appointments: %s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// isDomainError reports errors that describe the request or the data rather
// than the storage layer. They pass through unwrapped.
func isDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDoctorNotFound) ||
		ledger.IsRejection(err) ||
		errors.Is(err, ErrAppointmentNotFound) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTooManyBookings)
}

func storageError(op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
