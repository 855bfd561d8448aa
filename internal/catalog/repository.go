package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/echannel-booking/internal/database"
)

// DoctorLookup resolves the doctor snapshot used by bookings.
type DoctorLookup interface {
	GetDoctor(ctx context.Context, id int64) (*Doctor, error)
}

// Repository is the full catalog read interface.
type Repository interface {
	DoctorLookup
	ListDoctors(ctx context.Context, filter DoctorFilter) ([]Doctor, error)
	ListAvailability(ctx context.Context, doctorID int64, date time.Time) ([]Slot, error)
}

// PostgresRepository reads the catalog tables.
type PostgresRepository struct {
	db database.Querier
}

// NewPostgresRepository wires the catalog to Postgres.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	if db == nil {
		panic("catalog: querier required")
	}
	return &PostgresRepository{db: db}
}

const doctorColumns = `id, name, specialty, hospital, fee_cents`

func (r *PostgresRepository) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	var d Doctor
	err := r.db.QueryRow(ctx, query, id).Scan(&d.ID, &d.Name, &d.Specialty, &d.Hospital, &d.FeeCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("catalog: get doctor: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepository) ListDoctors(ctx context.Context, filter DoctorFilter) ([]Doctor, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value = strings.TrimSpace(value); value == "" {
			return
		}
		args = append(args, "%"+value+"%")
		conds = append(conds, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
	}
	add("name", filter.Name)
	add("specialty", filter.Specialty)
	add("hospital", filter.Hospital)

	query := `SELECT ` + doctorColumns + ` FROM doctors`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY name, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list doctors: %w", err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialty, &d.Hospital, &d.FeeCents); err != nil {
			return nil, fmt.Errorf("catalog: scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list doctors: %w", err)
	}
	return doctors, nil
}

// ListAvailability returns the active slots of a doctor on date, earliest
// first. Full slots are included so agents can see them as sold out.
func (r *PostgresRepository) ListAvailability(ctx context.Context, doctorID int64, date time.Time) ([]Slot, error) {
	query := `
		SELECT id, doctor_id, slot_date, start_time::text, end_time::text,
		       max_appointments, booked_appointments, is_active
		FROM availability_slots
		WHERE doctor_id = $1 AND slot_date = $2 AND is_active
		ORDER BY start_time, id
	`
	rows, err := r.db.Query(ctx, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("catalog: list availability: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.DoctorID, &s.Date, &s.StartTime, &s.EndTime,
			&s.MaxAppointments, &s.BookedAppointments, &s.IsActive); err != nil {
			return nil, fmt.Errorf("catalog: scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list availability: %w", err)
	}
	return slots, nil
}
