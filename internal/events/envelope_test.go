package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

type badEvent struct{}

func (badEvent) EventType() string { return "" }

func TestNewEnvelope(t *testing.T) {
	fixedNow := time.Unix(1700000000, 0).UTC()
	prevNow := nowFunc
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = prevNow }()

	id := uuid.MustParse("9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8")
	env, err := NewEnvelope("appointment:42", "req-1", AppointmentBookedV1{
		AppointmentID: 42,
		FormattedID:   "APT000042",
		DoctorName:    "Dr. Perera",
		PatientName:   "Nimal",
	}, WithEventID(id))
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if env.EventID != id {
		t.Fatalf("expected event id override, got %s", env.EventID)
	}
	if !env.OccurredAt.Equal(fixedNow) {
		t.Fatalf("unexpected timestamp: %s", env.OccurredAt)
	}
	if env.EventType != "appointments.appointment.booked.v1" {
		t.Fatalf("unexpected type: %s", env.EventType)
	}
	if env.CorrelationID != "req-1" {
		t.Fatalf("unexpected correlation id: %s", env.CorrelationID)
	}

	var booked AppointmentBookedV1
	if err := env.DecodePayload(&booked); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if booked.FormattedID != "APT000042" {
		t.Fatalf("payload mismatch: %#v", booked)
	}
}

func TestEnvelopeValidation(t *testing.T) {
	if _, err := NewEnvelope("", "", AppointmentCancelledV1{}); err == nil {
		t.Fatal("expected aggregate error")
	}
	if _, err := NewEnvelope("agg", "", nil); err == nil {
		t.Fatal("expected nil event error")
	}
	if _, err := NewEnvelope("agg", "", badEvent{}); err == nil {
		t.Fatal("expected event type error")
	}
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := NewEnvelope("appointment:7", "", AppointmentCancelledV1{AppointmentID: 7, Refunded: true})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, _ := json.Marshal(env)

	decoded, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if decoded.EventID != env.EventID || decoded.EventType != env.EventType {
		t.Fatalf("decoded envelope mismatch: %#v", decoded)
	}

	if _, err := DecodeEnvelope([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("expected error for envelope without id")
	}
	if _, err := DecodeEnvelope([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
