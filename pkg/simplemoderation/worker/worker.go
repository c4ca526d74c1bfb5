// Package worker runs the moderation queue consumer: one message at a time,
// nack-with-requeue on transient failure, exponential backoff between
// redeliveries, and an optional delivery ceiling after which the task is
// dead-lettered instead of retried forever.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
)

// Worker consumes moderation tasks and drives Service.ProcessTask.
type Worker struct {
	queue         simplemoderation.ModerationQueue
	service       simplemoderation.Service
	events        simplemoderation.EventSink
	baseDelay     time.Duration
	maxDelay      time.Duration
	maxDeliveries int
	logger        *slog.Logger
}

// Option represents a functional option for configuring the worker
type Option func(*Worker)

// WithEventSink sets the sink notified when a task is dropped.
func WithEventSink(sink simplemoderation.EventSink) Option {
	return func(w *Worker) {
		w.events = sink
	}
}

// WithBackoff sets the base and cap of the exponential redelivery backoff.
func WithBackoff(base, max time.Duration) Option {
	return func(w *Worker) {
		w.baseDelay = base
		w.maxDelay = max
	}
}

// WithMaxDeliveries bounds how many times a task is delivered before it is
// rejected to the dead-letter destination. Zero keeps the original unbounded
// retry behaviour.
func WithMaxDeliveries(n int) Option {
	return func(w *Worker) {
		w.maxDeliveries = n
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates a worker for the given queue and service.
func New(queue simplemoderation.ModerationQueue, service simplemoderation.Service, opts ...Option) *Worker {
	w := &Worker{
		queue:     queue,
		service:   service,
		events:    simplemoderation.NewNoopEventSink(),
		baseDelay: 500 * time.Millisecond,
		maxDelay:  30 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes deliveries until ctx is cancelled or the queue closes.
// In-flight work settles before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.queue.Subscribe(ctx)
	if err != nil {
		return err
	}

	w.logger.Info("moderation worker started")
	for delivery := range deliveries {
		w.handle(ctx, delivery)
	}
	w.logger.Info("moderation worker stopped")
	return nil
}

func (w *Worker) handle(ctx context.Context, d simplemoderation.Delivery) {
	task := d.Task
	w.logger.Info("processing moderation task", "content_id", task.ContentID, "attempt", d.Attempt)

	err := w.service.ProcessTask(ctx, task)
	if err == nil {
		if ackErr := d.Ack(); ackErr != nil {
			w.logger.Warn("failed to ack task", "content_id", task.ContentID, "error", ackErr)
		}
		return
	}

	w.logger.Warn("moderation task failed", "content_id", task.ContentID, "attempt", d.Attempt, "error", err)

	if w.maxDeliveries > 0 && d.Attempt >= w.maxDeliveries {
		if rejErr := d.Reject(); rejErr != nil {
			w.logger.Warn("failed to reject task", "content_id", task.ContentID, "error", rejErr)
		}
		if evErr := w.events.TaskDropped(ctx, task, d.Attempt); evErr != nil {
			w.logger.Warn("task dropped event failed", "content_id", task.ContentID, "error", evErr)
		}
		return
	}

	// Back off before requeueing so a struggling dependency is not hammered.
	w.sleep(ctx, w.delayFor(d.Attempt))
	if nackErr := d.Nack(); nackErr != nil {
		w.logger.Warn("failed to nack task", "content_id", task.ContentID, "error", nackErr)
	}
}

// delayFor computes the capped exponential delay preceding redelivery
// attempt+1. Attempt is 1-based.
func (w *Worker) delayFor(attempt int) time.Duration {
	b := retry.WithCappedDuration(w.maxDelay, retry.NewExponential(w.baseDelay))
	var delay time.Duration
	for i := 0; i < attempt; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		delay = next
	}
	return delay
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
