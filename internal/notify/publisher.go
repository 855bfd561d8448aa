package notify

import (
	"context"
	"fmt"

	"github.com/wolfman30/echannel-booking/internal/events"
)

// QueuePublisher hands outbox entries to the notification queue. It is the
// deliverer's handler; a send error leaves the entry pending for retry.
type QueuePublisher struct {
	queue QueueClient
}

func NewQueuePublisher(queue QueueClient) *QueuePublisher {
	if queue == nil {
		panic("notify: queue required")
	}
	return &QueuePublisher{queue: queue}
}

func (p *QueuePublisher) Handle(ctx context.Context, entry events.OutboxEntry) error {
	if len(entry.Envelope) == 0 {
		return fmt.Errorf("notify: outbox entry %s has no envelope", entry.ID)
	}
	return p.queue.Send(ctx, string(entry.Envelope))
}

var _ events.DeliveryHandler = (*QueuePublisher)(nil)
