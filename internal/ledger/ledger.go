// Package ledger tracks per-slot appointment capacity. Every change to
// availability_slots.booked_appointments goes through TryClaim or Release and
// runs on the caller's transaction, so the counter moves together with the
// appointment row it accounts for.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/echannel-booking/internal/database"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

var (
	// ErrSlotNotFound means no slot with that id exists for the doctor.
	ErrSlotNotFound = errors.New("ledger: slot not found")
	// ErrSlotInactive means the slot exists but is closed for booking.
	ErrSlotInactive = errors.New("ledger: slot inactive")
	// ErrSlotFull means every appointment in the slot is taken.
	ErrSlotFull = errors.New("ledger: slot full")
)

// IsRejection reports whether err is one of the capacity rejections above.
func IsRejection(err error) bool {
	return errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrSlotInactive) || errors.Is(err, ErrSlotFull)
}

// Claim describes the slot after a successful claim.
type Claim struct {
	SlotID   int64
	DoctorID int64
	Booked   int
	Capacity int
	// Date is the slot's day as YYYY-MM-DD.
	Date string
}

// Remaining is the capacity left after this claim.
func (c Claim) Remaining() int {
	return c.Capacity - c.Booked
}

// RejectionRecorder receives one call per refused claim. metrics.BookingMetrics
// satisfies it.
type RejectionRecorder interface {
	ObserveSlotRejection(reason string)
}

// Ledger claims and releases slot capacity.
type Ledger struct {
	logger  *logging.Logger
	metrics RejectionRecorder
}

// New builds a Ledger. metrics may be nil.
func New(logger *logging.Logger, metrics RejectionRecorder) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{logger: logger, metrics: metrics}
}

// TryClaim takes one unit of capacity from slotID. The check and the
// increment are a single conditional UPDATE, so concurrent claims on the last
// unit are serialized by the row lock and exactly one of them wins.
func (l *Ledger) TryClaim(ctx context.Context, q database.Querier, doctorID, slotID int64) (Claim, error) {
	query := `
		UPDATE availability_slots
		SET booked_appointments = booked_appointments + 1,
		    updated_at = now()
		WHERE id = $1
		  AND doctor_id = $2
		  AND is_active
		  AND booked_appointments < max_appointments
		RETURNING id, doctor_id, booked_appointments, max_appointments, slot_date::text
	`
	var c Claim
	err := q.QueryRow(ctx, query, slotID, doctorID).Scan(&c.SlotID, &c.DoctorID, &c.Booked, &c.Capacity, &c.Date)
	if err == nil {
		l.logger.Debug("slot claimed", "slot_id", slotID, "booked", c.Booked, "capacity", c.Capacity)
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Claim{}, fmt.Errorf("ledger: claim slot: %w", err)
	}

	reason, err := l.classify(ctx, q, doctorID, slotID)
	if err != nil {
		return Claim{}, err
	}
	if l.metrics != nil {
		l.metrics.ObserveSlotRejection(rejectionLabel(reason))
	}
	l.logger.Info("slot claim rejected", "slot_id", slotID, "doctor_id", doctorID, "reason", rejectionLabel(reason))
	return Claim{}, reason
}

// classify explains why the conditional update matched nothing. It runs in
// the same transaction, after the update, so it sees the state that refused
// the claim.
func (l *Ledger) classify(ctx context.Context, q database.Querier, doctorID, slotID int64) (reason error, err error) {
	query := `
		SELECT is_active, booked_appointments, max_appointments
		FROM availability_slots
		WHERE id = $1 AND doctor_id = $2
	`
	var (
		active           bool
		booked, capacity int
	)
	err = q.QueryRow(ctx, query, slotID, doctorID).Scan(&active, &booked, &capacity)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrSlotNotFound, nil
	case err != nil:
		return nil, fmt.Errorf("ledger: classify claim: %w", err)
	case !active:
		return ErrSlotInactive, nil
	case booked >= capacity:
		return ErrSlotFull, nil
	default:
		// Capacity freed between the update and this read; report it as
		// full so the caller retries against fresh state.
		return ErrSlotFull, nil
	}
}

// Release returns one unit of capacity to slotID. The counter never drops
// below zero and releasing an unknown slot is a no-op.
func (l *Ledger) Release(ctx context.Context, q database.Querier, slotID int64) error {
	query := `
		UPDATE availability_slots
		SET booked_appointments = GREATEST(booked_appointments - 1, 0),
		    updated_at = now()
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, slotID)
	if err != nil {
		return fmt.Errorf("ledger: release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		l.logger.Warn("release for unknown slot ignored", "slot_id", slotID)
	}
	return nil
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, ErrSlotFull):
		return "slot_full"
	case errors.Is(err, ErrSlotInactive):
		return "slot_inactive"
	case errors.Is(err, ErrSlotNotFound):
		return "slot_not_found"
	default:
		return "unknown"
	}
}
