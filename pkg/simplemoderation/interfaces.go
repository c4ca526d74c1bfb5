package simplemoderation

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Repository defines the interface for content and moderation persistence.
//
// Moderation results are keyed by content id: SaveModeration is an upsert and
// a content can never accumulate more than one result row.
type Repository interface {
	// Content operations
	CreateContent(ctx context.Context, content *Content) error
	GetContent(ctx context.Context, id uuid.UUID) (*Content, error)
	UpdateContent(ctx context.Context, content *Content) error
	DeleteContent(ctx context.Context, id uuid.UUID) error
	ListContent(ctx context.Context, filter ContentFilter) ([]*Content, error)

	// Moderation operations
	GetModerationByContentID(ctx context.Context, contentID uuid.UUID) (*ModerationResult, error)
	SaveModeration(ctx context.Context, result *ModerationResult) error
	DeleteModerationByContentID(ctx context.Context, contentID uuid.UUID) error
	ListModerationResults(ctx context.Context) ([]*ModerationResult, error)

	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// Classifier is the gateway to the external ML classification service.
//
// Implementations shipped with this library never surface transport errors:
// they return the degraded verdict instead. The error return exists for
// custom implementations; the service applies the same fallback when it is
// non-nil.
type Classifier interface {
	Classify(ctx context.Context, text, language string) (*Verdict, error)
}

// Delivery is one message handed to a queue consumer. The consumer must call
// exactly one of Ack, Nack or Reject.
type Delivery struct {
	Task ModerationTask

	// Attempt is 1 for the first delivery and increments on each redelivery.
	Attempt int

	ack    func() error
	nack   func() error
	reject func() error
}

// Ack marks the message fully processed and safe to discard.
func (d *Delivery) Ack() error { return d.ack() }

// Nack requeues the message for redelivery after a transient failure.
func (d *Delivery) Nack() error { return d.nack() }

// Reject discards the message without requeueing. Queues with a dead-letter
// destination move the payload there.
func (d *Delivery) Reject() error { return d.reject() }

// NewDelivery constructs a Delivery; intended for queue implementations.
func NewDelivery(task ModerationTask, attempt int, ack, nack, reject func() error) Delivery {
	return Delivery{Task: task, Attempt: attempt, ack: ack, nack: nack, reject: reject}
}

// ModerationQueue decouples "content created" from "content classified" with
// at-least-once delivery and manual acknowledgment.
type ModerationQueue interface {
	// Publish durably enqueues a task. Failure to enqueue must be surfaced,
	// never silently dropped.
	Publish(ctx context.Context, task ModerationTask) error

	// Subscribe returns a channel delivering one unacknowledged message at a
	// time (prefetch = 1). The channel closes when ctx is cancelled or the
	// queue is closed.
	Subscribe(ctx context.Context) (<-chan Delivery, error)

	// Close shuts the queue down after in-flight work settles (best effort).
	Close() error
}

// EventSink defines the interface for lifecycle event handling
type EventSink interface {
	ContentCreated(ctx context.Context, content *Content) error
	ContentUpdated(ctx context.Context, content *Content) error
	ContentDeleted(ctx context.Context, contentID uuid.UUID) error
	ModerationSaved(ctx context.Context, result *ModerationResult) error

	// TaskDropped is fired when a task exhausts its delivery budget.
	TaskDropped(ctx context.Context, task ModerationTask, attempts int) error
}

// Archiver stores immutable snapshots of moderation decisions for audit.
type Archiver interface {
	Save(ctx context.Context, key string, reader io.Reader) error
	Load(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
