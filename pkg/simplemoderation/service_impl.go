package simplemoderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Content operations

// SubmitContent validates and persists a submission, then enqueues it for
// classification. If publishing fails the created content is returned
// together with a QueueError: the row is already committed and is not rolled
// back, it simply has not been scheduled for moderation.
func (s *service) SubmitContent(ctx context.Context, req SubmitContentRequest) (*Content, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	source := req.Source
	if source == "" {
		source = DefaultSource
	}

	now := time.Now().UTC()
	content := &Content{
		ID:        uuid.New(),
		Text:      req.Text,
		Language:  req.Language,
		Source:    source,
		UserID:    req.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repository.CreateContent(ctx, content); err != nil {
		return nil, &ContentError{ContentID: content.ID, Op: "create", Err: err}
	}

	if err := s.eventSink.ContentCreated(ctx, content); err != nil {
		slog.Warn("content created event failed", "content_id", content.ID, "error", err)
	}

	if s.queue != nil {
		task := ModerationTask{ContentID: content.ID, Text: content.Text, Language: content.Language}
		if err := s.queue.Publish(ctx, task); err != nil {
			return content, &QueueError{ContentID: content.ID, Op: "publish", Err: err}
		}
	}

	return content, nil
}

func (s *service) GetContent(ctx context.Context, id uuid.UUID) (*Content, error) {
	return s.repository.GetContent(ctx, id)
}

func (s *service) GetContentWithModeration(ctx context.Context, id uuid.UUID) (*ContentWithModeration, error) {
	content, err := s.repository.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.joinModeration(ctx, content)
}

func (s *service) ListContent(ctx context.Context, req ListContentRequest) ([]*ContentWithModeration, error) {
	filter := ContentFilter{Language: req.Language, UserID: req.UserID}
	contents, err := s.repository.ListContent(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := make([]*ContentWithModeration, 0, len(contents))
	for _, content := range contents {
		joined, err := s.joinModeration(ctx, content)
		if err != nil {
			return nil, err
		}
		// Status lives on the joined moderation row, so it is matched after
		// the join rather than pushed into the repository predicate.
		if req.Status != nil && joined.ModerationState() != *req.Status {
			continue
		}
		result = append(result, joined)
	}
	return result, nil
}

func (s *service) joinModeration(ctx context.Context, content *Content) (*ContentWithModeration, error) {
	moderation, err := s.repository.GetModerationByContentID(ctx, content.ID)
	if err != nil && !errors.Is(err, ErrModerationNotFound) {
		return nil, err
	}
	return &ContentWithModeration{Content: *content, Moderation: moderation}, nil
}

func (s *service) UpdateContent(ctx context.Context, id uuid.UUID, req UpdateContentRequest) (*Content, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	content, err := s.repository.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Text != nil {
		content.Text = *req.Text
	}
	if req.Language != nil {
		content.Language = *req.Language
	}
	if req.Source != nil {
		content.Source = *req.Source
	}
	if req.UserID != nil {
		content.UserID = req.UserID
	}
	content.UpdatedAt = time.Now().UTC()

	if err := s.repository.UpdateContent(ctx, content); err != nil {
		return nil, &ContentError{ContentID: id, Op: "update", Err: err}
	}

	if err := s.eventSink.ContentUpdated(ctx, content); err != nil {
		slog.Warn("content updated event failed", "content_id", id, "error", err)
	}

	return content, nil
}

// DeleteContent removes a content row and cascades to its moderation result,
// children before parent. The deleted row is returned.
func (s *service) DeleteContent(ctx context.Context, id uuid.UUID) (*Content, error) {
	content, err := s.repository.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repository.DeleteContent(ctx, id); err != nil {
		return nil, &ContentError{ContentID: id, Op: "delete", Err: err}
	}

	if err := s.eventSink.ContentDeleted(ctx, id); err != nil {
		slog.Warn("content deleted event failed", "content_id", id, "error", err)
	}

	return content, nil
}

// Moderation operations

// ApplyModeration records a manual verdict for a content. It uses the same
// upsert path as the worker, so applying a verdict twice updates the existing
// result row instead of creating a duplicate.
func (s *service) ApplyModeration(ctx context.Context, contentID uuid.UUID, req ApplyModerationRequest) (*ModerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repository.GetContent(ctx, contentID); err != nil {
		return nil, err
	}

	result, err := s.upsertModeration(ctx, contentID, func(r *ModerationResult) {
		r.Status = req.Status
		if req.Categories != nil {
			r.Categories = req.Categories
		}
		if req.Confidence != nil {
			r.Confidence = *req.Confidence
		}
		if req.LanguageDetected != "" {
			r.LanguageDetected = req.LanguageDetected
		}
		if req.ModeratedBy != "" {
			r.ModeratedBy = req.ModeratedBy
		}
		if req.Notes != "" {
			r.Notes = req.Notes
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetModeration(ctx context.Context, contentID uuid.UUID) (*ModerationResult, error) {
	return s.repository.GetModerationByContentID(ctx, contentID)
}

func (s *service) ModerationStats(ctx context.Context) (*ModerationStats, error) {
	results, err := s.repository.ListModerationResults(ctx)
	if err != nil {
		return nil, err
	}

	stats := &ModerationStats{Total: int64(len(results))}
	var confidenceSum int64
	for _, r := range results {
		switch r.Status {
		case StatusApproved:
			stats.Approved++
		case StatusRejected:
			stats.Rejected++
		case StatusNeedsReview:
			stats.NeedsReview++
		}
		confidenceSum += int64(r.Confidence)
	}
	if stats.Total > 0 {
		stats.AverageConfidence = float64(confidenceSum) / float64(stats.Total)
	}
	return stats, nil
}

// ProcessTask handles one delivered queue message. The classifier call is
// bounded by the configured timeout; any failure degrades to a needs_review
// verdict so ingestion is never blocked by classifier health. The verdict is
// then upserted, which is idempotent under redelivery.
func (s *service) ProcessTask(ctx context.Context, task ModerationTask) error {
	if _, err := s.repository.GetContent(ctx, task.ContentID); err != nil {
		return &ContentError{ContentID: task.ContentID, Op: "process", Err: err}
	}

	verdict := s.classify(ctx, task.Text, task.Language)

	_, err := s.upsertModeration(ctx, task.ContentID, func(r *ModerationResult) {
		r.Status = verdict.Status
		r.Categories = verdict.Categories
		r.Confidence = verdict.Confidence
		r.LanguageDetected = verdict.LanguageDetected
		r.ModeratedBy = s.moderatorName
	})
	if err != nil {
		return err
	}
	return nil
}

func (s *service) classify(ctx context.Context, text, language string) *Verdict {
	if s.classifier == nil {
		return DegradedVerdict(language)
	}

	ctx, cancel := context.WithTimeout(ctx, s.classifyTimeout)
	defer cancel()

	verdict, err := s.classifier.Classify(ctx, text, language)
	if err != nil || verdict == nil {
		slog.Warn("classifier unavailable, degrading to manual review", "error", err)
		return DegradedVerdict(language)
	}
	if !verdict.Status.IsValid() {
		slog.Warn("classifier returned unknown status, degrading to manual review", "status", verdict.Status)
		return DegradedVerdict(language)
	}
	return verdict
}

// upsertModeration loads the existing result for contentID (if any), applies
// mutate, and saves. ID and CreatedAt are preserved across updates; the
// repository keys results by content id so concurrent attempts cannot
// produce duplicates.
func (s *service) upsertModeration(ctx context.Context, contentID uuid.UUID, mutate func(*ModerationResult)) (*ModerationResult, error) {
	now := time.Now().UTC()

	result, err := s.repository.GetModerationByContentID(ctx, contentID)
	if errors.Is(err, ErrModerationNotFound) {
		result = &ModerationResult{
			ID:         uuid.New(),
			ContentID:  contentID,
			Categories: []string{},
			CreatedAt:  now,
		}
	} else if err != nil {
		return nil, err
	}

	mutate(result)
	result.UpdatedAt = now

	if err := s.repository.SaveModeration(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save moderation result for content %s: %w", contentID, err)
	}

	if err := s.eventSink.ModerationSaved(ctx, result); err != nil {
		slog.Warn("moderation saved event failed", "content_id", contentID, "error", err)
	}

	s.archiveDecision(ctx, result)

	return result, nil
}

// archiveDecision writes an immutable snapshot of the decision. Archive
// failures are logged and never fail the workflow.
func (s *service) archiveDecision(ctx context.Context, result *ModerationResult) {
	if s.archiver == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("failed to encode decision snapshot", "content_id", result.ContentID, "error", err)
		return
	}

	key := fmt.Sprintf("decisions/%s.json", result.ContentID)
	if err := s.archiver.Save(ctx, key, bytes.NewReader(data)); err != nil {
		slog.Warn("failed to archive decision snapshot", "content_id", result.ContentID, "error", err)
	}
}

// User operations

func (s *service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = "user"
	}

	user := &User{
		ID:        uuid.New(),
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FullName:  req.FullName,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repository.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repository.GetUser(ctx, id)
}

func (s *service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.repository.GetUserByUsername(ctx, username)
}
