// Package audit keeps an append-only trail of appointment lifecycle changes
// and who made them.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle change.
type EventType string

const (
	EventAppointmentBooked    EventType = "appointment.booked"
	EventAppointmentCancelled EventType = "appointment.cancelled"
	EventAppointmentCompleted EventType = "appointment.completed"
)

// Event is one immutable audit row. ActorID is empty for guest bookings.
type Event struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"event_type"`
	AppointmentID int64           `json:"appointment_id"`
	ActorID       string          `json:"actor_id,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Filter narrows Query.
type Filter struct {
	AppointmentID int64
	ActorID       string
	Type          EventType
	Since         time.Time
	Limit         int
}

// Trail writes and reads audit rows through database/sql.
type Trail struct {
	db *sql.DB
}

// NewTrail creates an audit trail.
func NewTrail(db *sql.DB) *Trail {
	return &Trail{db: db}
}

// Record appends an event.
func (t *Trail) Record(ctx context.Context, event Event) error {
	if t == nil || t.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO booking_audit_events (id, event_type, appointment_id, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		event.AppointmentID,
		nullString(event.ActorID),
		[]byte(details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: record %s: %w", event.Type, err)
	}
	return nil
}

// Query returns matching events, newest first.
func (t *Trail) Query(ctx context.Context, filter Filter) ([]Event, error) {
	var (
		conds []string
		args  []any
	)
	if filter.AppointmentID > 0 {
		args = append(args, filter.AppointmentID)
		conds = append(conds, fmt.Sprintf("appointment_id = $%d", len(args)))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conds = append(conds, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, event_type, appointment_id, actor_id, details, created_at FROM booking_audit_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			eventType string
			actor     sql.NullString
			details   []byte
		)
		if err := rows.Scan(&e.ID, &eventType, &e.AppointmentID, &actor, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Type = EventType(eventType)
		e.ActorID = actor.String
		e.Details = details
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
