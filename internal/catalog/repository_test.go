package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doctorRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "specialty", "hospital", "fee_cents"})
}

func TestGetDoctor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM doctors WHERE id = \\$1").
		WithArgs(int64(3)).
		WillReturnRows(doctorRows().AddRow(int64(3), "Dr. Perera", "Cardiology", "Asiri Central", int64(350000)))
	mock.ExpectQuery("FROM doctors WHERE id = \\$1").
		WithArgs(int64(4)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM doctors WHERE id = \\$1").
		WithArgs(int64(5)).
		WillReturnError(errors.New("connection refused"))

	repo := NewPostgresRepository(mock)
	d, err := repo.GetDoctor(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Perera", d.Name)
	assert.Equal(t, int64(350000), d.FeeCents)

	_, err = repo.GetDoctor(context.Background(), 4)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = repo.GetDoctor(context.Background(), 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDoctorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDoctorsBuildsFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("WHERE specialty ILIKE \\$1 AND hospital ILIKE \\$2 ORDER BY name, id LIMIT \\$3 OFFSET \\$4").
		WithArgs("%cardio%", "%Asiri%", 10, 20).
		WillReturnRows(doctorRows().
			AddRow(int64(3), "Dr. Perera", "Cardiology", "Asiri Central", int64(350000)).
			AddRow(int64(8), "Dr. Silva", "Cardiology", "Asiri Surgical", int64(300000)))

	got, err := NewPostgresRepository(mock).ListDoctors(context.Background(), DoctorFilter{
		Specialty: " cardio ",
		Hospital:  "Asiri",
		Limit:     10,
		Offset:    20,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Dr. Silva", got[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDoctorsDefaultsPaging(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM doctors ORDER BY name, id LIMIT \\$1 OFFSET \\$2").
		WithArgs(50, 0).
		WillReturnRows(doctorRows())

	got, err := NewPostgresRepository(mock).ListDoctors(context.Background(), DoctorFilter{Limit: 1000, Offset: -5})
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAvailability(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM availability_slots").
		WithArgs(int64(3), date).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "doctor_id", "slot_date", "start_time", "end_time", "max_appointments", "booked_appointments", "is_active",
		}).
			AddRow(int64(7), int64(3), date, "09:00:00", "12:00:00", 10, 10, true).
			AddRow(int64(9), int64(3), date, "14:00:00", "17:00:00", 10, 4, true))

	slots, err := NewPostgresRepository(mock).ListAvailability(context.Background(), 3, date)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 0, slots[0].Remaining())
	assert.Equal(t, 6, slots[1].Remaining())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRemaining(t *testing.T) {
	assert.Equal(t, 0, Slot{MaxAppointments: 5, BookedAppointments: 2}.Remaining(), "inactive")
	assert.Equal(t, 3, Slot{MaxAppointments: 5, BookedAppointments: 2, IsActive: true}.Remaining())
	assert.Equal(t, 0, Slot{MaxAppointments: 5, BookedAppointments: 7, IsActive: true}.Remaining())
}
