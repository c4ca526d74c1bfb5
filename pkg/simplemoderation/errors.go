package simplemoderation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrContentNotFound indicates a content was not found
	ErrContentNotFound = errors.New("content not found")

	// ErrModerationNotFound indicates no moderation result exists for a content
	ErrModerationNotFound = errors.New("moderation result not found")

	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidModerationStatus indicates a status outside the verdict set
	ErrInvalidModerationStatus = errors.New("invalid moderation status")

	// ErrQueueClosed indicates the queue has been shut down
	ErrQueueClosed = errors.New("moderation queue closed")
)

// ContentError represents an error related to content operations
type ContentError struct {
	ContentID uuid.UUID
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// QueueError represents a failure to schedule or deliver a moderation task.
// When it wraps a publish failure the content row already exists; callers
// surface the error without rolling the row back.
type QueueError struct {
	ContentID uuid.UUID
	Op        string
	Err       error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("queue operation %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries structured field errors for malformed input.
// It is rejected before persistence and never retried.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
