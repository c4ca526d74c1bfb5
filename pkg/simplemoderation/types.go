package simplemoderation

import (
	"time"

	"github.com/google/uuid"
)

// ModerationStatus is the domain type for moderation verdict states.
type ModerationStatus string

// Moderation status constants (typed).
const (
	StatusApproved    ModerationStatus = "approved"
	StatusRejected    ModerationStatus = "rejected"
	StatusNeedsReview ModerationStatus = "needs_review"

	// StatusPending is not persisted; it is reported for content that has no
	// moderation result yet.
	StatusPending ModerationStatus = "pending"
)

// IsValid reports whether s is a persistable moderation status.
func (s ModerationStatus) IsValid() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusNeedsReview:
		return true
	}
	return false
}

// DefaultSource is used when a submission does not name its origin.
const DefaultSource = "web"

// Content represents a unit of submitted text awaiting or having undergone
// moderation.
type Content struct {
	ID        uuid.UUID  `json:"id"`
	Text      string     `json:"text"`
	Language  string     `json:"language"`
	Source    string     `json:"source"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ModerationResult is the verdict (and metadata) produced for one Content
// item. A content has at most one result; repeated classification updates the
// existing row in place.
type ModerationResult struct {
	ID               uuid.UUID        `json:"id"`
	ContentID        uuid.UUID        `json:"content_id"`
	Status           ModerationStatus `json:"status"`
	Categories       []string         `json:"categories"`
	Confidence       int              `json:"confidence"`
	LanguageDetected string           `json:"language_detected,omitempty"`
	ModeratedBy      string           `json:"moderated_by,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// ContentWithModeration joins a content row with its moderation result.
// Moderation is nil while classification is still pending.
type ContentWithModeration struct {
	Content
	Moderation *ModerationResult `json:"moderation"`
}

// ModerationState returns the effective status of the joined record,
// StatusPending when no result exists yet.
func (c *ContentWithModeration) ModerationState() ModerationStatus {
	if c.Moderation == nil {
		return StatusPending
	}
	return c.Moderation.Status
}

// User is a minimal account record. Content carries an optional weak
// reference to a user; there is no authentication.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Verdict is the classifier's answer for one piece of text.
type Verdict struct {
	Status           ModerationStatus `json:"status"`
	Categories       []string         `json:"categories"`
	Confidence       int              `json:"confidence"`
	LanguageDetected string           `json:"language_detected"`
}

// DegradedVerdict is the safe fallback applied when the classifier is
// unreachable: moderation degrades to a human-review queue instead of
// blocking ingestion.
func DegradedVerdict(language string) *Verdict {
	return &Verdict{
		Status:           StatusNeedsReview,
		Categories:       []string{},
		Confidence:       0,
		LanguageDetected: language,
	}
}

// ContentFilter defines predicate fields for listing content. Provided
// fields are combined with logical AND.
type ContentFilter struct {
	Language *string
	UserID   *uuid.UUID
}

// ModerationTask is the queue message that decouples content submission from
// classification.
type ModerationTask struct {
	ContentID uuid.UUID `json:"content_id"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
}

// ModerationStats aggregates verdict counts for reporting.
type ModerationStats struct {
	Total             int64   `json:"total"`
	Approved          int64   `json:"approved"`
	Rejected          int64   `json:"rejected"`
	NeedsReview       int64   `json:"needs_review"`
	AverageConfidence float64 `json:"average_confidence"`
}
