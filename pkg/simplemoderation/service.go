package simplemoderation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-moderation library.
type Service interface {
	// Content operations
	SubmitContent(ctx context.Context, req SubmitContentRequest) (*Content, error)
	GetContent(ctx context.Context, id uuid.UUID) (*Content, error)
	GetContentWithModeration(ctx context.Context, id uuid.UUID) (*ContentWithModeration, error)
	ListContent(ctx context.Context, req ListContentRequest) ([]*ContentWithModeration, error)
	UpdateContent(ctx context.Context, id uuid.UUID, req UpdateContentRequest) (*Content, error)
	DeleteContent(ctx context.Context, id uuid.UUID) (*Content, error)

	// Moderation operations
	ApplyModeration(ctx context.Context, contentID uuid.UUID, req ApplyModerationRequest) (*ModerationResult, error)
	GetModeration(ctx context.Context, contentID uuid.UUID) (*ModerationResult, error)
	ModerationStats(ctx context.Context) (*ModerationStats, error)

	// ProcessTask handles one delivered queue message: classify, then upsert
	// the verdict. Intended to be driven by a worker.
	ProcessTask(ctx context.Context, task ModerationTask) error

	// User operations
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// service implements the Service interface
type service struct {
	repository      Repository
	queue           ModerationQueue
	classifier      Classifier
	eventSink       EventSink
	archiver        Archiver
	classifyTimeout time.Duration
	moderatorName   string
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithQueue sets the moderation queue for the service
func WithQueue(q ModerationQueue) Option {
	return func(s *service) {
		s.queue = q
	}
}

// WithClassifier sets the classifier gateway for the service
func WithClassifier(c Classifier) Option {
	return func(s *service) {
		s.classifier = c
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithArchiver sets the decision archive for the service
func WithArchiver(a Archiver) Option {
	return func(s *service) {
		s.archiver = a
	}
}

// WithClassifyTimeout bounds the classifier call; expiry is treated as a
// gateway failure and degrades to a needs_review verdict.
func WithClassifyTimeout(d time.Duration) Option {
	return func(s *service) {
		s.classifyTimeout = d
	}
}

// WithModeratorName sets the attribution recorded on worker-produced
// verdicts (default "system").
func WithModeratorName(name string) Option {
	return func(s *service) {
		s.moderatorName = name
	}
}

// DefaultClassifyTimeout bounds the classifier call when no override is set.
const DefaultClassifyTimeout = 10 * time.Second

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		classifyTimeout: DefaultClassifyTimeout,
		moderatorName:   "system",
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}

	return s, nil
}
