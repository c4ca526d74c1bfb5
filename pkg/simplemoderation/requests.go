package simplemoderation

import (
	"unicode/utf8"

	"github.com/google/uuid"
)

// Request DTOs

// Text and language bounds for submissions.
const (
	MaxTextLength     = 10000
	MinLanguageLength = 2
	MaxLanguageLength = 5
)

// SubmitContentRequest contains parameters for submitting new content.
type SubmitContentRequest struct {
	Text     string
	Language string
	Source   string
	UserID   *uuid.UUID
}

// Validate checks the submission bounds and returns a ValidationError
// listing every offending field.
func (r *SubmitContentRequest) Validate() error {
	var fields []FieldError
	if n := utf8.RuneCountInString(r.Text); n == 0 {
		fields = append(fields, FieldError{Field: "text", Message: "must not be empty"})
	} else if n > MaxTextLength {
		fields = append(fields, FieldError{Field: "text", Message: "must be at most 10000 characters"})
	}
	if n := utf8.RuneCountInString(r.Language); n < MinLanguageLength || n > MaxLanguageLength {
		fields = append(fields, FieldError{Field: "language", Message: "must be 2-5 characters"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// UpdateContentRequest contains partial fields merged over an existing
// content row. Nil fields are left untouched.
type UpdateContentRequest struct {
	Text     *string
	Language *string
	Source   *string
	UserID   *uuid.UUID
}

// Validate checks any provided fields against the submission bounds.
func (r *UpdateContentRequest) Validate() error {
	var fields []FieldError
	if r.Text != nil {
		if n := utf8.RuneCountInString(*r.Text); n == 0 {
			fields = append(fields, FieldError{Field: "text", Message: "must not be empty"})
		} else if n > MaxTextLength {
			fields = append(fields, FieldError{Field: "text", Message: "must be at most 10000 characters"})
		}
	}
	if r.Language != nil {
		if n := utf8.RuneCountInString(*r.Language); n < MinLanguageLength || n > MaxLanguageLength {
			fields = append(fields, FieldError{Field: "language", Message: "must be 2-5 characters"})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ApplyModerationRequest contains partial moderation fields for the manual
// override path. It flows through the same upsert as the worker so a second
// override updates rather than duplicates the result row.
type ApplyModerationRequest struct {
	Status           ModerationStatus
	Categories       []string
	Confidence       *int
	LanguageDetected string
	ModeratedBy      string
	Notes            string
}

// Validate checks the status and confidence bounds.
func (r *ApplyModerationRequest) Validate() error {
	var fields []FieldError
	if !r.Status.IsValid() {
		fields = append(fields, FieldError{Field: "status", Message: "must be approved, rejected or needs_review"})
	}
	if r.Confidence != nil && (*r.Confidence < 0 || *r.Confidence > 100) {
		fields = append(fields, FieldError{Field: "confidence", Message: "must be between 0 and 100"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ListContentRequest contains filter fields for listing content. Status is
// matched against the joined moderation state (pending when absent).
type ListContentRequest struct {
	Language *string
	UserID   *uuid.UUID
	Status   *ModerationStatus
}

// CreateUserRequest contains parameters for creating a user record.
type CreateUserRequest struct {
	Username string
	Password string
	Email    string
	FullName string
	Role     string
}

// Validate requires the identifying fields.
func (r *CreateUserRequest) Validate() error {
	var fields []FieldError
	if r.Username == "" {
		fields = append(fields, FieldError{Field: "username", Message: "must not be empty"})
	}
	if r.Password == "" {
		fields = append(fields, FieldError{Field: "password", Message: "must not be empty"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
