package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/echannel-booking/internal/audit"
	"github.com/wolfman30/echannel-booking/internal/catalog"
	"github.com/wolfman30/echannel-booking/internal/database"
	"github.com/wolfman30/echannel-booking/internal/events"
	"github.com/wolfman30/echannel-booking/internal/identity"
	"github.com/wolfman30/echannel-booking/internal/ledger"
	"github.com/wolfman30/echannel-booking/internal/payments"
	"github.com/wolfman30/echannel-booking/internal/slottime"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

var appointmentsTracer = otel.Tracer("echannel.internal.appointments")

// SlotLedger claims and releases slot capacity on a transaction.
type SlotLedger interface {
	TryClaim(ctx context.Context, q database.Querier, doctorID, slotID int64) (ledger.Claim, error)
	Release(ctx context.Context, q database.Querier, slotID int64) error
}

// PaymentStore records payment rows on a transaction.
type PaymentStore interface {
	Create(ctx context.Context, q database.Querier, in payments.NewRecord) (*payments.Record, error)
	ListByAppointment(ctx context.Context, q database.Querier, appointmentID int64) ([]payments.Record, error)
	MarkRefunded(ctx context.Context, q database.Querier, appointmentID, refundCents int64) (int64, error)
}

// Notifier hands committed lifecycle changes to the notification pipeline.
type Notifier interface {
	AppointmentBooked(ctx context.Context, evt events.AppointmentBookedV1) error
	AppointmentCancelled(ctx context.Context, evt events.AppointmentCancelledV1) error
}

// AuditRecorder appends to the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// BookingGuard rate limits bookings per patient phone. AllowBooking is asked
// before the transaction; RecordBooking is told only about committed bookings.
type BookingGuard interface {
	AllowBooking(ctx context.Context, phone string) (bool, error)
	RecordBooking(ctx context.Context, phone string) error
}

// Metrics receives lifecycle outcomes.
type Metrics interface {
	ObserveBooking(result string, elapsed time.Duration)
	ObserveCancellation(refunded bool)
	ObserveCompletion()
	ObserveNotification(stage, status string)
}

// Option configures a Service.
type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithAudit(a AuditRecorder) Option { return func(s *Service) { s.audit = a } }

func WithBookingGuard(g BookingGuard) Option { return func(s *Service) { s.guard = g } }

func WithMetrics(m Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock overrides the time source used for lifecycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTxTimeout bounds each booking or cancellation transaction.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

// WithSideEffectTimeout bounds the post-commit audit and notification calls.
func WithSideEffectTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sideEffectTimeout = d
		}
	}
}

// Service runs the appointment lifecycle.
type Service struct {
	db       database.Transactor
	store    Store
	ledger   SlotLedger
	payments PaymentStore
	doctors  catalog.DoctorLookup
	logger   *logging.Logger

	notifier Notifier
	audit    AuditRecorder
	guard    BookingGuard
	metrics  Metrics

	txTimeout         time.Duration
	sideEffectTimeout time.Duration
	now               func() time.Time
}

// NewService constructs the lifecycle manager.
func NewService(db database.Transactor, store Store, slots SlotLedger, pay PaymentStore, doctors catalog.DoctorLookup, logger *logging.Logger, opts ...Option) *Service {
	if db == nil {
		panic("appointments: database required")
	}
	if store == nil || slots == nil || pay == nil || doctors == nil {
		panic("appointments: store, ledger, payments and doctor lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		db:                db,
		store:             store,
		ledger:            slots,
		payments:          pay,
		doctors:           doctors,
		logger:            logger,
		txTimeout:         5 * time.Second,
		sideEffectTimeout: 2 * time.Second,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Book reserves capacity (when a slot is given) and records a confirmed
// appointment with its payment, all in one transaction.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	start := time.Now()
	ctx, span := appointmentsTracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(attribute.Int64("echannel.doctor_id", req.DoctorID))

	appt, err := s.book(ctx, req)
	if s.metrics != nil {
		s.metrics.ObserveBooking(resultLabel(err), time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		if !isDomainError(err) {
			s.logger.Error("booking failed", "doctor_id", req.DoctorID, "error", err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int64("echannel.appointment_id", appt.ID))
	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookRequest) (*Appointment, error) {
	v, err := req.validate()
	if err != nil {
		return nil, err
	}

	if s.guard != nil {
		allowed, err := s.guard.AllowBooking(ctx, v.req.PatientPhone)
		if err == nil && !allowed {
			return nil, ErrTooManyBookings
		}
	}

	doctor, err := s.doctors.GetDoctor(ctx, v.req.DoctorID)
	if err != nil {
		return nil, storageError("doctor lookup", err)
	}

	apptTime := slottime.Normalize(v.req.Time)
	if !slottime.IsCanonical(apptTime) {
		return nil, invalid("appointment_time", "unrecognized time "+v.req.Time)
	}

	appt := &Appointment{
		PatientName:     v.req.PatientName,
		PatientPhone:    v.req.PatientPhone,
		PatientEmail:    v.req.PatientEmail,
		PatientNIC:      v.req.PatientNIC,
		PatientDOB:      v.dob,
		PatientGender:   v.req.PatientGender,
		PatientAge:      v.req.PatientAge,
		DoctorID:        doctor.ID,
		SlotID:          v.req.SlotID,
		AgentID:         v.req.AgentID,
		Date:            v.date,
		Time:            apptTime,
		Status:          StatusConfirmed,
		PaymentMethod:   v.method,
		AmountCents:     v.req.AmountCents,
		RefundEligible:  v.req.RefundEligible,
		RefundableCents: v.req.RefundableCents,
		DoctorName:      doctor.Name,
		Specialty:       doctor.Specialty,
		Hospital:        doctor.Hospital,
	}
	if appt.AgentID == "" {
		appt.AgentID = identity.AgentID(ctx)
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	err = s.db.InTx(txCtx, func(q database.Querier) error {
		// Walk-in and guest bookings without a slot are not capacity
		// tracked.
		if appt.SlotID != nil {
			claim, err := s.ledger.TryClaim(txCtx, q, appt.DoctorID, *appt.SlotID)
			if err != nil {
				return err
			}
			if claim.Date != appt.DateString() {
				return invalid("appointment_date", "slot is on "+claim.Date)
			}
		}
		if err := s.store.Insert(txCtx, q, appt); err != nil {
			return err
		}
		rec, err := s.payments.Create(txCtx, q, payments.NewRecord{
			AppointmentID: appt.ID,
			Method:        appt.PaymentMethod,
			AmountCents:   appt.AmountCents,
			TransactionID: v.req.TransactionID,
		})
		if err != nil {
			return err
		}
		appt.Payments = []payments.Record{*rec}
		return nil
	})
	if err != nil {
		return nil, storageError("book", err)
	}
	appt.FormattedID = FormatID(appt.ID)
	if s.guard != nil {
		if err := s.guard.RecordBooking(ctx, appt.PatientPhone); err != nil {
			s.logger.Warn("booking velocity not recorded", "appointment_id", appt.ID, "error", err)
		}
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"formatted_id", appt.FormattedID,
		"doctor_id", appt.DoctorID,
		"slot_id", slotLogValue(appt.SlotID),
		"agent_id", appt.AgentID,
		"payment_method", appt.PaymentMethod,
	)
	s.afterBook(ctx, appt)
	return appt, nil
}

// Cancel moves an appointment to cancelled, returns its capacity to the slot
// and, when asked and allowed, marks its payments refunded.
func (s *Service) Cancel(ctx context.Context, id int64, withRefund bool) (*CancelResult, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("echannel.appointment_id", id),
		attribute.Bool("echannel.with_refund", withRefund),
	)

	var (
		appt          *Appointment
		refundedRows  int64
		refundedCents int64
		cancelledAt   = s.now()
	)
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	err := s.db.InTx(txCtx, func(q database.Querier) error {
		var err error
		appt, err = s.store.GetForUpdate(txCtx, q, id)
		if err != nil {
			return err
		}
		if err := checkTransition(appt.Status, StatusCancelled); err != nil {
			return err
		}
		if err := s.store.UpdateStatus(txCtx, q, id, StatusCancelled, cancelledAt); err != nil {
			return err
		}
		if appt.SlotID != nil {
			if err := s.ledger.Release(txCtx, q, *appt.SlotID); err != nil {
				return err
			}
		}
		if withRefund && appt.RefundEligible {
			refundedRows, err = s.payments.MarkRefunded(txCtx, q, id, appt.RefundableCents)
			if err != nil {
				return err
			}
			if refundedRows > 0 {
				recs, err := s.payments.ListByAppointment(txCtx, q, id)
				if err != nil {
					return err
				}
				for _, rec := range recs {
					refundedCents += rec.RefundedCents
				}
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		err = storageError("cancel", err)
		if !isDomainError(err) {
			s.logger.Error("cancellation failed", "appointment_id", id, "error", err)
		}
		return nil, err
	}

	appt.Status = StatusCancelled
	appt.CancelledAt = &cancelledAt
	result := &CancelResult{
		AppointmentID: id,
		FormattedID:   FormatID(id),
		Status:        StatusCancelled,
		Refunded:      refundedRows > 0,
		RefundedCents: refundedCents,
	}
	if s.metrics != nil {
		s.metrics.ObserveCancellation(result.Refunded)
	}
	s.logger.Info("appointment cancelled",
		"appointment_id", id,
		"slot_id", slotLogValue(appt.SlotID),
		"refund_requested", withRefund,
		"refunded", result.Refunded,
	)
	s.afterCancel(ctx, appt, result)
	return result, nil
}

// Complete marks a confirmed appointment as attended.
func (s *Service) Complete(ctx context.Context, id int64) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.complete")
	defer span.End()
	span.SetAttributes(attribute.Int64("echannel.appointment_id", id))

	var appt *Appointment
	completedAt := s.now()
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	err := s.db.InTx(txCtx, func(q database.Querier) error {
		var err error
		appt, err = s.store.GetForUpdate(txCtx, q, id)
		if err != nil {
			return err
		}
		if err := checkTransition(appt.Status, StatusCompleted); err != nil {
			return err
		}
		return s.store.UpdateStatus(txCtx, q, id, StatusCompleted, completedAt)
	})
	if err != nil {
		span.RecordError(err)
		return nil, storageError("complete", err)
	}

	appt.Status = StatusCompleted
	appt.CompletedAt = &completedAt
	appt.UpdatedAt = completedAt
	if s.metrics != nil {
		s.metrics.ObserveCompletion()
	}
	s.logger.Info("appointment completed", "appointment_id", id)
	s.recordAudit(ctx, audit.EventAppointmentCompleted, id, nil)
	return appt, nil
}

// Get returns an appointment with its payment rows.
func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	appt, err := s.store.Get(ctx, s.db, id)
	if err != nil {
		return nil, storageError("get", err)
	}
	recs, err := s.payments.ListByAppointment(ctx, s.db, id)
	if err != nil {
		return nil, storageError("get", err)
	}
	appt.Payments = recs
	return appt, nil
}

// List returns appointments matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", "unknown status "+string(filter.Status))
	}
	out, err := s.store.List(ctx, s.db, filter)
	if err != nil {
		return nil, storageError("list", err)
	}
	return out, nil
}

// afterBook runs the post-commit side effects. Their failures are logged and
// counted; the booking stands regardless.
func (s *Service) afterBook(ctx context.Context, appt *Appointment) {
	s.recordAudit(ctx, audit.EventAppointmentBooked, appt.ID, map[string]any{
		"doctor_id":      appt.DoctorID,
		"slot_id":        appt.SlotID,
		"payment_method": appt.PaymentMethod,
		"amount_cents":   appt.AmountCents,
	})

	if s.notifier == nil {
		return
	}
	var paymentStatus string
	if len(appt.Payments) > 0 {
		paymentStatus = string(appt.Payments[0].Status)
	}
	evt := events.AppointmentBookedV1{
		AppointmentID:   appt.ID,
		FormattedID:     appt.FormattedID,
		DoctorID:        appt.DoctorID,
		DoctorName:      appt.DoctorName,
		Specialty:       appt.Specialty,
		Hospital:        appt.Hospital,
		AppointmentDate: appt.DateString(),
		AppointmentTime: appt.Time,
		PatientName:     appt.PatientName,
		PatientPhone:    appt.PatientPhone,
		PatientEmail:    appt.PatientEmail,
		PaymentMethod:   string(appt.PaymentMethod),
		PaymentStatus:   paymentStatus,
		AmountCents:     appt.AmountCents,
		AgentID:         appt.AgentID,
		BookedAt:        appt.CreatedAt,
	}
	s.notify(ctx, appt.ID, func(ctx context.Context) error {
		return s.notifier.AppointmentBooked(ctx, evt)
	})
}

func (s *Service) afterCancel(ctx context.Context, appt *Appointment, result *CancelResult) {
	s.recordAudit(ctx, audit.EventAppointmentCancelled, appt.ID, map[string]any{
		"slot_id":        appt.SlotID,
		"refunded":       result.Refunded,
		"refunded_cents": result.RefundedCents,
	})

	if s.notifier == nil {
		return
	}
	evt := events.AppointmentCancelledV1{
		AppointmentID:   appt.ID,
		FormattedID:     FormatID(appt.ID),
		DoctorName:      appt.DoctorName,
		Hospital:        appt.Hospital,
		AppointmentDate: appt.DateString(),
		AppointmentTime: appt.Time,
		PatientName:     appt.PatientName,
		PatientPhone:    appt.PatientPhone,
		PatientEmail:    appt.PatientEmail,
		Refunded:        result.Refunded,
		RefundedCents:   result.RefundedCents,
		CancelledAt:     *appt.CancelledAt,
	}
	s.notify(ctx, appt.ID, func(ctx context.Context) error {
		return s.notifier.AppointmentCancelled(ctx, evt)
	})
}

// notify runs fn detached from the request's cancellation, bounded by the
// side effect timeout.
func (s *Service) notify(ctx context.Context, appointmentID int64, fn func(context.Context) error) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()
	status := "ok"
	if err := fn(nctx); err != nil {
		status = "error"
		s.logger.Warn("notification dispatch failed", "appointment_id", appointmentID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveNotification("dispatch", status)
	}
}

func (s *Service) recordAudit(ctx context.Context, eventType audit.EventType, appointmentID int64, details map[string]any) {
	if s.audit == nil {
		return
	}
	var raw json.RawMessage
	if details != nil {
		raw, _ = json.Marshal(details)
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()
	err := s.audit.Record(actx, audit.Event{
		Type:          eventType,
		AppointmentID: appointmentID,
		ActorID:       identity.AgentID(ctx),
		Details:       raw,
	})
	if err != nil {
		s.logger.Warn("audit record failed", "appointment_id", appointmentID, "event_type", eventType, "error", err)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrDoctorNotFound):
		return "doctor_not_found"
	case errors.Is(err, ErrSlotNotFound):
		return "slot_not_found"
	case errors.Is(err, ErrSlotInactive):
		return "slot_inactive"
	case errors.Is(err, ErrSlotFull):
		return "slot_full"
	case errors.Is(err, ErrTooManyBookings):
		return "rate_limited"
	default:
		return "storage_failure"
	}
}

func slotLogValue(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
