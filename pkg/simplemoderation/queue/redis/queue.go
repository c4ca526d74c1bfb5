// Package redis provides a ModerationQueue backed by Redis lists using the
// reliable-queue pattern: publishers LPUSH onto a ready list, consumers
// BLMOVE messages into a per-queue processing list and LREM them on ack.
// Messages left in the processing list by a crashed consumer are moved back
// to the ready list the next time a consumer subscribes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
)

// Options holds configuration for the Redis-backed queue.
type Options struct {
	// Address is the host:port of the Redis server.
	Address string
	// Password is the password used to authenticate.
	Password string
	// DB is the database index to select.
	DB int
	// QueueName is the base key for the ready list. The processing and
	// dead-letter lists derive from it.
	QueueName string
	// PollTimeout bounds each blocking pop so shutdown is responsive.
	PollTimeout time.Duration
}

// DefaultOptions returns Options with localhost defaults.
func DefaultOptions() Options {
	return Options{
		Address:     "localhost:6379",
		QueueName:   "moderation_queue",
		PollTimeout: time.Second,
	}
}

type envelope struct {
	Task    simplemoderation.ModerationTask `json:"task"`
	Attempt int                             `json:"attempt"`
}

// Queue implements simplemoderation.ModerationQueue on Redis.
type Queue struct {
	client      *redis.Client
	ownsClient  bool
	name        string
	pollTimeout time.Duration

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// New creates a queue with its own client connection.
func New(opts Options) *Queue {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	q := NewWithClient(client, opts)
	q.ownsClient = true
	return q
}

// NewWithURL creates a queue from a Redis URI.
func NewWithURL(url, queueName string) (*Queue, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts := DefaultOptions()
	if queueName != "" {
		opts.QueueName = queueName
	}
	q := NewWithClient(redis.NewClient(redisOpts), opts)
	q.ownsClient = true
	return q, nil
}

// NewWithClient creates a queue on an existing client. The caller retains
// ownership of the client.
func NewWithClient(client *redis.Client, opts Options) *Queue {
	name := opts.QueueName
	if name == "" {
		name = DefaultOptions().QueueName
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultOptions().PollTimeout
	}
	return &Queue{
		client:      client,
		name:        name,
		pollTimeout: pollTimeout,
		done:        make(chan struct{}),
	}
}

func (q *Queue) readyKey() string      { return q.name }
func (q *Queue) processingKey() string { return q.name + ":processing" }
func (q *Queue) deadKey() string       { return q.name + ":dead" }

// Publish enqueues a task. Enqueue failures are returned to the caller: the
// content row exists but has not been scheduled for moderation.
func (q *Queue) Publish(ctx context.Context, task simplemoderation.ModerationTask) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return simplemoderation.ErrQueueClosed
	}

	payload, err := json.Marshal(envelope{Task: task, Attempt: 1})
	if err != nil {
		return fmt.Errorf("failed to encode moderation task: %w", err)
	}

	if err := q.client.LPush(ctx, q.readyKey(), payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue moderation task: %w", err)
	}
	return nil
}

// Subscribe starts a consumer loop. One message is in flight at a time
// (prefetch = 1); the next blocking pop does not start until the previous
// delivery is settled.
func (q *Queue) Subscribe(ctx context.Context) (<-chan simplemoderation.Delivery, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, simplemoderation.ErrQueueClosed
	}
	q.mu.Unlock()

	q.recoverProcessing(ctx)

	deliveries := make(chan simplemoderation.Delivery)
	go q.deliverLoop(ctx, deliveries)
	return deliveries, nil
}

// recoverProcessing re-drives messages a previous consumer left in the
// processing list back onto the ready list.
func (q *Queue) recoverProcessing(ctx context.Context) {
	for {
		val, err := q.client.LMove(ctx, q.processingKey(), q.readyKey(), "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			slog.Warn("failed to recover processing list", "queue", q.name, "error", err)
			return
		}
		slog.Info("requeued stale in-flight message", "queue", q.name, "payload_bytes", len(val))
	}
}

func (q *Queue) deliverLoop(ctx context.Context, deliveries chan<- simplemoderation.Delivery) {
	defer close(deliveries)

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		default:
		}

		payload, err := q.client.BLMove(ctx, q.readyKey(), q.processingKey(), "RIGHT", "LEFT", q.pollTimeout).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("queue pop failed", "queue", q.name, "error", err)
			select {
			case <-time.After(q.pollTimeout):
				continue
			case <-ctx.Done():
				return
			case <-q.done:
				return
			}
		}

		var env envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			// Undecodable payloads go straight to the dead-letter list.
			slog.Error("dropping undecodable queue payload", "queue", q.name, "error", err)
			q.client.LRem(ctx, q.processingKey(), 1, payload)
			q.client.LPush(ctx, q.deadKey(), payload)
			continue
		}

		settled := make(chan struct{})
		var once sync.Once
		delivery := simplemoderation.NewDelivery(env.Task, env.Attempt,
			q.ackFunc(payload, &once, settled),
			q.nackFunc(payload, env, &once, settled),
			q.rejectFunc(payload, &once, settled),
		)

		select {
		case deliveries <- delivery:
		case <-ctx.Done():
			return
		case <-q.done:
			return
		}

		select {
		case <-settled:
		case <-ctx.Done():
			return
		case <-q.done:
			return
		}
	}
}

func (q *Queue) ackFunc(payload string, once *sync.Once, settled chan struct{}) func() error {
	return func() error {
		var err error
		once.Do(func() {
			err = q.client.LRem(context.Background(), q.processingKey(), 1, payload).Err()
			close(settled)
		})
		return err
	}
}

func (q *Queue) nackFunc(payload string, env envelope, once *sync.Once, settled chan struct{}) func() error {
	return func() error {
		var err error
		once.Do(func() {
			defer close(settled)
			ctx := context.Background()

			next, marshalErr := json.Marshal(envelope{Task: env.Task, Attempt: env.Attempt + 1})
			if marshalErr != nil {
				err = marshalErr
				return
			}
			// RPUSH onto the ready tail so the retry is delivered next.
			pipe := q.client.TxPipeline()
			pipe.LRem(ctx, q.processingKey(), 1, payload)
			pipe.RPush(ctx, q.readyKey(), next)
			_, err = pipe.Exec(ctx)
		})
		return err
	}
}

func (q *Queue) rejectFunc(payload string, once *sync.Once, settled chan struct{}) func() error {
	return func() error {
		var err error
		once.Do(func() {
			defer close(settled)
			ctx := context.Background()

			pipe := q.client.TxPipeline()
			pipe.LRem(ctx, q.processingKey(), 1, payload)
			pipe.LPush(ctx, q.deadKey(), payload)
			_, err = pipe.Exec(ctx)
		})
		return err
	}
}

// Close stops consumer loops and, when this queue owns the connection,
// closes the client.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)

	if q.ownsClient {
		return q.client.Close()
	}
	return nil
}
