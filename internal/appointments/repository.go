package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/echannel-booking/internal/database"
	"github.com/wolfman30/echannel-booking/internal/payments"
)

// Store persists appointments. Methods run on the querier they are given so
// the service decides what shares a transaction.
type Store interface {
	Insert(ctx context.Context, q database.Querier, appt *Appointment) error
	Get(ctx context.Context, q database.Querier, id int64) (*Appointment, error)
	GetForUpdate(ctx context.Context, q database.Querier, id int64) (*Appointment, error)
	UpdateStatus(ctx context.Context, q database.Querier, id int64, status Status, at time.Time) error
	List(ctx context.Context, q database.Querier, filter ListFilter) ([]*Appointment, error)
}

// PostgresStore implements Store with pgx.
type PostgresStore struct{}

func NewPostgresStore() *PostgresStore {
	return &PostgresStore{}
}

const appointmentColumns = `id, patient_name, patient_phone, COALESCE(patient_email, ''), COALESCE(patient_nic, ''),
	patient_dob, COALESCE(patient_gender, ''), patient_age, doctor_id, slot_id, COALESCE(agent_id, ''),
	appointment_date, appointment_time::text, status, payment_method, total_cents, refund_eligible,
	refundable_cents, doctor_name, specialty, hospital, created_at, updated_at, cancelled_at, completed_at`

// Insert writes appt and fills in ID and timestamps.
func (s *PostgresStore) Insert(ctx context.Context, q database.Querier, appt *Appointment) error {
	query := `
		INSERT INTO appointments (
			patient_name, patient_phone, patient_email, patient_nic, patient_dob, patient_gender, patient_age,
			doctor_id, slot_id, agent_id, appointment_date, appointment_time, status, payment_method,
			total_cents, refund_eligible, refundable_cents, doctor_name, specialty, hospital
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), $7,
			$8, $9, NULLIF($10, ''), $11, $12::time, $13, $14,
			$15, $16, $17, $18, $19, $20
		)
		RETURNING id, created_at, updated_at
	`
	err := q.QueryRow(ctx, query,
		appt.PatientName, appt.PatientPhone, appt.PatientEmail, appt.PatientNIC, appt.PatientDOB, appt.PatientGender, appt.PatientAge,
		appt.DoctorID, appt.SlotID, appt.AgentID, appt.Date, appt.Time, string(appt.Status), string(appt.PaymentMethod),
		appt.AmountCents, appt.RefundEligible, appt.RefundableCents, appt.DoctorName, appt.Specialty, appt.Hospital,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, q database.Querier, id int64) (*Appointment, error) {
	return s.get(ctx, q, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
}

// GetForUpdate reads the row and locks it until the transaction ends, so
// concurrent cancellations of the same appointment run one after another.
func (s *PostgresStore) GetForUpdate(ctx context.Context, q database.Querier, id int64) (*Appointment, error) {
	return s.get(ctx, q, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresStore) get(ctx context.Context, q database.Querier, query string, id int64) (*Appointment, error) {
	appt, err := scanAppointment(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

// UpdateStatus sets the status and stamps the matching timestamp column.
func (s *PostgresStore) UpdateStatus(ctx context.Context, q database.Querier, id int64, status Status, at time.Time) error {
	query := `
		UPDATE appointments
		SET status = $2,
		    updated_at = $3,
		    cancelled_at = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancelled_at END,
		    completed_at = CASE WHEN $2 = 'completed' THEN $3 ELSE completed_at END
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, id, string(status), at)
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, q database.Querier, filter ListFilter) ([]*Appointment, error) {
	var (
		conds []string
		args  []any
	)
	if filter.DoctorID > 0 {
		args = append(args, filter.DoctorID)
		conds = append(conds, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		conds = append(conds, fmt.Sprintf("appointment_date = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AgentID != "" {
		args = append(args, filter.AgentID)
		conds = append(conds, fmt.Sprintf("agent_id = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY appointment_date, appointment_time, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a              Appointment
		status, method string
	)
	err := row.Scan(
		&a.ID, &a.PatientName, &a.PatientPhone, &a.PatientEmail, &a.PatientNIC,
		&a.PatientDOB, &a.PatientGender, &a.PatientAge, &a.DoctorID, &a.SlotID, &a.AgentID,
		&a.Date, &a.Time, &status, &method, &a.AmountCents, &a.RefundEligible,
		&a.RefundableCents, &a.DoctorName, &a.Specialty, &a.Hospital, &a.CreatedAt, &a.UpdatedAt, &a.CancelledAt, &a.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.PaymentMethod = payments.Method(method)
	a.FormattedID = FormatID(a.ID)
	return &a, nil
}
