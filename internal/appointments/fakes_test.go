package appointments

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/echannel-booking/internal/audit"
	"github.com/wolfman30/echannel-booking/internal/catalog"
	"github.com/wolfman30/echannel-booking/internal/database"
	"github.com/wolfman30/echannel-booking/internal/events"
	"github.com/wolfman30/echannel-booking/internal/ledger"
	"github.com/wolfman30/echannel-booking/internal/payments"
)

type slotRow struct {
	doctorID int64
	date     string
	capacity int
	booked   int
	active   bool
}

type memState struct {
	slots    map[int64]slotRow
	appts    map[int64]Appointment
	pays     map[int64][]payments.Record
	nextAppt int64
	nextPay  int64
}

func (s *memState) clone() *memState {
	out := &memState{
		slots:    make(map[int64]slotRow, len(s.slots)),
		appts:    make(map[int64]Appointment, len(s.appts)),
		pays:     make(map[int64][]payments.Record, len(s.pays)),
		nextAppt: s.nextAppt,
		nextPay:  s.nextPay,
	}
	for k, v := range s.slots {
		out.slots[k] = v
	}
	for k, v := range s.appts {
		out.appts[k] = v
	}
	for k, v := range s.pays {
		out.pays[k] = append([]payments.Record(nil), v...)
	}
	return out
}

// memDB runs one transaction at a time and restores the previous state when
// fn fails, which is what the row locks and rollback give us in Postgres.
type memDB struct {
	database.Querier

	mu    sync.Mutex
	state *memState
}

func newMemDB() *memDB {
	return &memDB{state: &memState{
		slots: map[int64]slotRow{},
		appts: map[int64]Appointment{},
		pays:  map[int64][]payments.Record{},
	}}
}

func (m *memDB) InTx(_ context.Context, fn func(q database.Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.state.clone()
	if err := fn(m); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *memDB) addSlot(id, doctorID int64, capacity, booked int, active bool) {
	m.state.slots[id] = slotRow{doctorID: doctorID, date: testSlotDate, capacity: capacity, booked: booked, active: active}
}

func (m *memDB) slot(id int64) slotRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.slots[id]
}

func (m *memDB) appointmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.appts)
}

func (m *memDB) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, recs := range m.state.pays {
		n += len(recs)
	}
	return n
}

type memLedger struct{ db *memDB }

func (l memLedger) TryClaim(_ context.Context, _ database.Querier, doctorID, slotID int64) (ledger.Claim, error) {
	row, ok := l.db.state.slots[slotID]
	switch {
	case !ok || row.doctorID != doctorID:
		return ledger.Claim{}, ledger.ErrSlotNotFound
	case !row.active:
		return ledger.Claim{}, ledger.ErrSlotInactive
	case row.booked >= row.capacity:
		return ledger.Claim{}, ledger.ErrSlotFull
	}
	row.booked++
	l.db.state.slots[slotID] = row
	return ledger.Claim{SlotID: slotID, DoctorID: doctorID, Booked: row.booked, Capacity: row.capacity, Date: row.date}, nil
}

func (l memLedger) Release(_ context.Context, _ database.Querier, slotID int64) error {
	row, ok := l.db.state.slots[slotID]
	if !ok {
		return nil
	}
	if row.booked > 0 {
		row.booked--
	}
	l.db.state.slots[slotID] = row
	return nil
}

type memStore struct{ db *memDB }

func (s memStore) Insert(_ context.Context, _ database.Querier, appt *Appointment) error {
	st := s.db.state
	st.nextAppt++
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	appt.ID = st.nextAppt
	appt.CreatedAt, appt.UpdatedAt = now, now
	st.appts[appt.ID] = *appt
	return nil
}

func (s memStore) Get(_ context.Context, _ database.Querier, id int64) (*Appointment, error) {
	appt, ok := s.db.state.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	appt.FormattedID = FormatID(appt.ID)
	appt.Payments = nil
	return &appt, nil
}

func (s memStore) GetForUpdate(ctx context.Context, q database.Querier, id int64) (*Appointment, error) {
	return s.Get(ctx, q, id)
}

func (s memStore) UpdateStatus(_ context.Context, _ database.Querier, id int64, status Status, at time.Time) error {
	appt, ok := s.db.state.appts[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	appt.Status = status
	appt.UpdatedAt = at
	switch status {
	case StatusCancelled:
		appt.CancelledAt = &at
	case StatusCompleted:
		appt.CompletedAt = &at
	}
	s.db.state.appts[id] = appt
	return nil
}

func (s memStore) List(_ context.Context, _ database.Querier, filter ListFilter) ([]*Appointment, error) {
	var out []*Appointment
	for id := int64(1); id <= s.db.state.nextAppt; id++ {
		appt, ok := s.db.state.appts[id]
		if !ok {
			continue
		}
		if filter.Status != "" && appt.Status != filter.Status {
			continue
		}
		if filter.DoctorID > 0 && appt.DoctorID != filter.DoctorID {
			continue
		}
		out = append(out, &appt)
	}
	return out, nil
}

type memPayments struct {
	db        *memDB
	createErr error
}

func (p *memPayments) Create(_ context.Context, _ database.Querier, in payments.NewRecord) (*payments.Record, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	st := p.db.state
	st.nextPay++
	rec := payments.Record{
		ID:            st.nextPay,
		AppointmentID: in.AppointmentID,
		Method:        in.Method,
		Status:        payments.InitialStatus(in.Method),
		AmountCents:   in.AmountCents,
		TransactionID: in.TransactionID,
	}
	st.pays[in.AppointmentID] = append(st.pays[in.AppointmentID], rec)
	return &rec, nil
}

func (p *memPayments) ListByAppointment(_ context.Context, _ database.Querier, appointmentID int64) ([]payments.Record, error) {
	return append([]payments.Record(nil), p.db.state.pays[appointmentID]...), nil
}

func (p *memPayments) MarkRefunded(_ context.Context, _ database.Querier, appointmentID, refundCents int64) (int64, error) {
	recs := p.db.state.pays[appointmentID]
	var changed int64
	for i := range recs {
		if recs[i].Status != payments.StatusPaid {
			continue
		}
		recs[i].Status = payments.StatusRefunded
		recs[i].RefundedCents = recs[i].AmountCents
		if refundCents > 0 && refundCents < recs[i].AmountCents {
			recs[i].RefundedCents = refundCents
		}
		changed++
	}
	return changed, nil
}

type stubDoctors map[int64]catalog.Doctor

func (d stubDoctors) GetDoctor(_ context.Context, id int64) (*catalog.Doctor, error) {
	doc, ok := d[id]
	if !ok {
		return nil, catalog.ErrDoctorNotFound
	}
	return &doc, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	err       error
	booked    []events.AppointmentBookedV1
	cancelled []events.AppointmentCancelledV1
}

func (n *recordingNotifier) AppointmentBooked(_ context.Context, evt events.AppointmentBookedV1) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, evt)
	return n.err
}

func (n *recordingNotifier) AppointmentCancelled(_ context.Context, evt events.AppointmentCancelledV1) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, evt)
	return n.err
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAudit) Record(_ context.Context, evt audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, evt)
	return nil
}

type recordingMetrics struct {
	mu            sync.Mutex
	bookings      map[string]int
	cancellations int
	completions   int
	notifications map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{bookings: map[string]int{}, notifications: map[string]int{}}
}

func (m *recordingMetrics) ObserveBooking(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[result]++
}

func (m *recordingMetrics) ObserveCancellation(bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancellations++
}

func (m *recordingMetrics) ObserveCompletion() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions++
}

func (m *recordingMetrics) ObserveNotification(stage, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[stage+":"+status]++
}

type stubGuard struct {
	allow bool
	err   error
}

func (g stubGuard) AllowBooking(context.Context, string) (bool, error) {
	return g.allow, g.err
}

func (g stubGuard) RecordBooking(context.Context, string) error {
	return g.err
}
