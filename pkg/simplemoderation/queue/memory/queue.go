// Package memory provides an in-process ModerationQueue for tests and
// single-process deployments. Delivery is at-least-once with manual
// acknowledgment; an unsettled in-flight message is requeued when the
// subscriber stops.
package memory

import (
	"context"
	"sync"

	"github.com/tendant/simple-moderation/pkg/simplemoderation"
)

type envelope struct {
	task    simplemoderation.ModerationTask
	attempt int
}

// Queue implements simplemoderation.ModerationQueue in memory.
type Queue struct {
	mu      sync.Mutex
	pending []envelope
	notify  chan struct{}
	done    chan struct{}
	closed  bool
}

// New creates a new in-memory queue
func New() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Publish enqueues a task. It fails once the queue is closed; it never
// silently drops.
func (q *Queue) Publish(ctx context.Context, task simplemoderation.ModerationTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return simplemoderation.ErrQueueClosed
	}

	q.pending = append(q.pending, envelope{task: task, attempt: 1})
	q.wake()
	return nil
}

// wake signals a waiting subscriber. Callers hold q.mu.
func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Subscribe returns a channel delivering one unacknowledged message at a
// time. The next message is not handed out until the previous one is
// settled (prefetch = 1 per subscriber).
func (q *Queue) Subscribe(ctx context.Context) (<-chan simplemoderation.Delivery, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, simplemoderation.ErrQueueClosed
	}
	q.mu.Unlock()

	deliveries := make(chan simplemoderation.Delivery)
	go q.deliverLoop(ctx, deliveries)
	return deliveries, nil
}

func (q *Queue) deliverLoop(ctx context.Context, deliveries chan<- simplemoderation.Delivery) {
	defer close(deliveries)

	for {
		env, ok := q.pop(ctx)
		if !ok {
			return
		}

		settled := make(chan struct{})
		var once sync.Once
		delivery := simplemoderation.NewDelivery(env.task, env.attempt,
			func() error { // ack
				once.Do(func() { close(settled) })
				return nil
			},
			func() error { // nack: requeue for redelivery
				once.Do(func() {
					q.requeue(envelope{task: env.task, attempt: env.attempt + 1})
					close(settled)
				})
				return nil
			},
			func() error { // reject: discard
				once.Do(func() { close(settled) })
				return nil
			},
		)

		select {
		case deliveries <- delivery:
		case <-ctx.Done():
			q.requeue(env)
			return
		case <-q.done:
			q.requeue(env)
			return
		}

		// Wait for the consumer to settle before handing out the next one.
		select {
		case <-settled:
		case <-ctx.Done():
			return
		case <-q.done:
			return
		}
	}
}

// pop blocks until a message is available, the context is cancelled, or the
// queue is closed.
func (q *Queue) pop(ctx context.Context) (envelope, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			env := q.pending[0]
			q.pending = q.pending[1:]
			if len(q.pending) > 0 {
				q.wake()
			}
			q.mu.Unlock()
			return env, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return envelope{}, false
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return envelope{}, false
		case <-q.done:
			return envelope{}, false
		}
	}
}

func (q *Queue) requeue(env envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	// Redeliveries go to the front so retries are not starved by new work.
	q.pending = append([]envelope{env}, q.pending...)
	q.wake()
}

// Close shuts the queue down. Pending messages are discarded; in-flight
// deliveries may still settle.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

// Len reports the number of pending (undelivered) messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
