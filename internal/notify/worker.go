package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/echannel-booking/internal/events"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

// Consumer is the name the worker records processed events under.
const Consumer = "notification-email"

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

var (
	bookedType    = events.AppointmentBookedV1{}.EventType()
	cancelledType = events.AppointmentCancelledV1{}.EventType()
)

type processedStore interface {
	AlreadyProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
}

// NotificationMetrics receives per-stage outcomes.
type NotificationMetrics interface {
	ObserveNotification(stage, status string)
}

// WorkerOption customizes the worker.
type WorkerOption func(*workerConfig)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	processed        processedStore
	archive          *Archive
	metrics          NotificationMetrics
}

// WithWorkerCount sets the number of consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait, capped at the SQS limit.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages one poll fetches.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithProcessedEventsStore makes redelivered envelopes a no-op.
func WithProcessedEventsStore(store processedStore) WorkerOption {
	return func(cfg *workerConfig) { cfg.processed = store }
}

func WithArchive(archive *Archive) WorkerOption {
	return func(cfg *workerConfig) { cfg.archive = archive }
}

func WithWorkerMetrics(m NotificationMetrics) WorkerOption {
	return func(cfg *workerConfig) { cfg.metrics = m }
}

// Worker consumes envelopes from the queue and emails the patient.
type Worker struct {
	queue  QueueClient
	email  EmailSender
	logger *logging.Logger
	now    func() time.Time

	cfg workerConfig
	wg  sync.WaitGroup
}

func NewWorker(queue QueueClient, email EmailSender, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if email == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{queue: queue, email: email, logger: logger, now: func() time.Time { return time.Now().UTC() }, cfg: cfg}
}

// Start launches the consumer goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until every consumer goroutine has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notification worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("notification worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive notifications", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage processes one queue message. Messages that can never succeed
// are deleted; a failed send is left on the queue for redelivery.
func (w *Worker) HandleMessage(ctx context.Context, msg QueueMessage) {
	env, err := events.DecodeEnvelope([]byte(msg.Body))
	if err != nil {
		w.logger.Error("dropping undecodable notification", "error", err, "msg_id", msg.ID)
		w.observe("decode", "error")
		w.deleteMessage(msg.ReceiptHandle)
		return
	}
	log := w.logger.With("event_id", env.EventID, "event_type", env.EventType, "aggregate", env.Aggregate)

	if w.cfg.processed != nil {
		done, err := w.cfg.processed.AlreadyProcessed(ctx, Consumer, env.EventID)
		if err != nil {
			log.Warn("processed lookup failed", "error", err)
		} else if done {
			log.Info("skipping duplicate notification")
			w.observe("dedupe", "duplicate")
			w.deleteMessage(msg.ReceiptHandle)
			return
		}
	}

	email, err := render(env)
	if err != nil {
		log.Error("dropping notification", "error", err)
		w.observe("render", "error")
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if email.To == "" {
		log.Info("patient has no email address; nothing to send")
		w.observe("send", "skipped")
	} else {
		if err := w.email.Send(ctx, email); err != nil {
			log.Error("notification send failed", "error", err)
			w.observe("send", "error")
			return
		}
		w.observe("send", "ok")
		w.archive(ctx, log, env, email)
	}

	if w.cfg.processed != nil {
		if _, err := w.cfg.processed.MarkProcessed(ctx, Consumer, env.EventID); err != nil {
			log.Warn("failed to record processed notification", "error", err)
		}
	}
	w.deleteMessage(msg.ReceiptHandle)
}

func render(env events.Envelope) (EmailMessage, error) {
	switch env.EventType {
	case bookedType:
		var evt events.AppointmentBookedV1
		if err := env.DecodePayload(&evt); err != nil {
			return EmailMessage{}, err
		}
		return BookingConfirmation(evt), nil
	case cancelledType:
		var evt events.AppointmentCancelledV1
		if err := env.DecodePayload(&evt); err != nil {
			return EmailMessage{}, err
		}
		return CancellationNotice(evt), nil
	default:
		return EmailMessage{}, errors.New("notify: unsupported event type " + env.EventType)
	}
}

func (w *Worker) archive(ctx context.Context, log *logging.Logger, env events.Envelope, email EmailMessage) {
	if !w.cfg.archive.Enabled() {
		return
	}
	_, err := w.cfg.archive.Put(ctx, SentRecord{
		EventID:       env.EventID.String(),
		EventType:     env.EventType,
		Aggregate:     env.Aggregate,
		CorrelationID: env.CorrelationID,
		Message:       email,
		SentAt:        w.now(),
	})
	if err != nil {
		log.Warn("failed to archive notification", "error", err)
		w.observe("archive", "error")
		return
	}
	w.observe("archive", "ok")
}

func (w *Worker) observe(stage, status string) {
	if w.cfg.metrics != nil {
		w.cfg.metrics.ObserveNotification(stage, status)
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notification message", "error", err)
	}
}
