package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/echannel-booking/internal/database"
)

// Repository persists payment rows. Every method runs on the querier it is
// given so bookings and cancellations can include it in their transaction.
type Repository struct{}

// NewRepository creates a payment repository.
func NewRepository() *Repository {
	return &Repository{}
}

const recordColumns = `id, appointment_id, method, status, amount_cents, COALESCE(transaction_id, ''),
	paid_at, refunded_cents, refunded_at, created_at`

// Create inserts the payment row for a new appointment. The status is derived
// from the method.
func (r *Repository) Create(ctx context.Context, q database.Querier, in NewRecord) (*Record, error) {
	status := InitialStatus(in.Method)
	var paidAt *time.Time
	if status == StatusPaid {
		now := time.Now().UTC()
		paidAt = &now
	}

	query := `
		INSERT INTO payments (appointment_id, method, status, amount_cents, transaction_id, paid_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING ` + recordColumns
	row := q.QueryRow(ctx, query, in.AppointmentID, string(in.Method), string(status), in.AmountCents, in.TransactionID, paidAt)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("payments: insert: %w", err)
	}
	return rec, nil
}

// ListByAppointment returns every payment row of an appointment, oldest
// first.
func (r *Repository) ListByAppointment(ctx context.Context, q database.Querier, appointmentID int64) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM payments WHERE appointment_id = $1 ORDER BY id`
	rows, err := q.Query(ctx, query, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("payments: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("payments: scan: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payments: list: %w", err)
	}
	return out, nil
}

// MarkRefunded moves the paid rows of an appointment to refunded.
// refundCents is the refundable deposit recorded at booking time; zero
// refunds each row's own amount. Rows already refunded are left alone, so a
// repeated call changes nothing. It returns the number of rows updated.
func (r *Repository) MarkRefunded(ctx context.Context, q database.Querier, appointmentID, refundCents int64) (int64, error) {
	query := `
		UPDATE payments
		SET status = 'refunded',
		    refunded_cents = CASE WHEN $2::bigint > 0 THEN LEAST($2::bigint, amount_cents) ELSE amount_cents END,
		    refunded_at = now()
		WHERE appointment_id = $1 AND status = 'paid'
	`
	tag, err := q.Exec(ctx, query, appointmentID, refundCents)
	if err != nil {
		return 0, fmt.Errorf("payments: mark refunded: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec            Record
		method, status string
	)
	if err := row.Scan(&rec.ID, &rec.AppointmentID, &method, &status, &rec.AmountCents, &rec.TransactionID,
		&rec.PaidAt, &rec.RefundedCents, &rec.RefundedAt, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Method = Method(method)
	rec.Status = Status(status)
	return &rec, nil
}
