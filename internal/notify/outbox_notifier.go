package notify

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/echannel-booking/internal/events"
)

// outboxAppender is the part of *events.OutboxStore the notifier writes to.
type outboxAppender interface {
	Append(ctx context.Context, aggregate, correlationID string, evt events.Event, opts ...events.EnvelopeOption) (events.Envelope, error)
}

// OutboxNotifier records lifecycle events in the outbox. The deliverer
// publishes them; the booking never waits on the queue or the mail provider.
type OutboxNotifier struct {
	outbox outboxAppender
}

func NewOutboxNotifier(outbox outboxAppender) *OutboxNotifier {
	if outbox == nil {
		panic("notify: outbox required")
	}
	return &OutboxNotifier{outbox: outbox}
}

func appointmentAggregate(id int64) string {
	return fmt.Sprintf("appointment:%d", id)
}

func (n *OutboxNotifier) AppointmentBooked(ctx context.Context, evt events.AppointmentBookedV1) error {
	_, err := n.outbox.Append(ctx, appointmentAggregate(evt.AppointmentID), middleware.GetReqID(ctx), evt,
		events.WithOccurredAt(evt.BookedAt))
	return err
}

func (n *OutboxNotifier) AppointmentCancelled(ctx context.Context, evt events.AppointmentCancelledV1) error {
	_, err := n.outbox.Append(ctx, appointmentAggregate(evt.AppointmentID), middleware.GetReqID(ctx), evt,
		events.WithOccurredAt(evt.CancelledAt))
	return err
}
