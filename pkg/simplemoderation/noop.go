package simplemoderation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ContentCreated does nothing and returns nil
func (n *NoopEventSink) ContentCreated(ctx context.Context, content *Content) error {
	return nil
}

// ContentUpdated does nothing and returns nil
func (n *NoopEventSink) ContentUpdated(ctx context.Context, content *Content) error {
	return nil
}

// ContentDeleted does nothing and returns nil
func (n *NoopEventSink) ContentDeleted(ctx context.Context, contentID uuid.UUID) error {
	return nil
}

// ModerationSaved does nothing and returns nil
func (n *NoopEventSink) ModerationSaved(ctx context.Context, result *ModerationResult) error {
	return nil
}

// TaskDropped does nothing and returns nil
func (n *NoopEventSink) TaskDropped(ctx context.Context, task ModerationTask, attempts int) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// ContentCreated logs the content creation event
func (l *LoggingEventSink) ContentCreated(ctx context.Context, content *Content) error {
	l.logger.Info("content created", "content_id", content.ID, "language", content.Language, "source", content.Source)
	return nil
}

// ContentUpdated logs the content update event
func (l *LoggingEventSink) ContentUpdated(ctx context.Context, content *Content) error {
	l.logger.Info("content updated", "content_id", content.ID)
	return nil
}

// ContentDeleted logs the content deletion event
func (l *LoggingEventSink) ContentDeleted(ctx context.Context, contentID uuid.UUID) error {
	l.logger.Info("content deleted", "content_id", contentID)
	return nil
}

// ModerationSaved logs the persisted verdict
func (l *LoggingEventSink) ModerationSaved(ctx context.Context, result *ModerationResult) error {
	l.logger.Info("moderation saved", "content_id", result.ContentID, "status", result.Status, "confidence", result.Confidence)
	return nil
}

// TaskDropped logs a task that exhausted its delivery budget
func (l *LoggingEventSink) TaskDropped(ctx context.Context, task ModerationTask, attempts int) error {
	l.logger.Error("moderation task dropped", "content_id", task.ContentID, "attempts", attempts)
	return nil
}
