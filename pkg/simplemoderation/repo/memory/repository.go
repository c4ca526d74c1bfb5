package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
)

// Repository implements simplemoderation.Repository using in-memory storage.
//
// Moderation results are keyed by content id, so the at-most-one-result
// invariant holds structurally rather than by application-level checks.
type Repository struct {
	mu          sync.RWMutex
	contents    map[uuid.UUID]*simplemoderation.Content
	moderations map[uuid.UUID]*simplemoderation.ModerationResult // content_id -> result
	users       map[uuid.UUID]*simplemoderation.User
	usersByName map[string]uuid.UUID
}

// New creates a new in-memory repository
func New() simplemoderation.Repository {
	return &Repository{
		contents:    make(map[uuid.UUID]*simplemoderation.Content),
		moderations: make(map[uuid.UUID]*simplemoderation.ModerationResult),
		users:       make(map[uuid.UUID]*simplemoderation.User),
		usersByName: make(map[string]uuid.UUID),
	}
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *simplemoderation.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to avoid external modifications
	contentCopy := *content
	r.contents[content.ID] = &contentCopy

	return nil
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*simplemoderation.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	content, exists := r.contents[id]
	if !exists {
		return nil, simplemoderation.ErrContentNotFound
	}

	contentCopy := *content
	return &contentCopy, nil
}

func (r *Repository) UpdateContent(ctx context.Context, content *simplemoderation.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[content.ID]; !exists {
		return simplemoderation.ErrContentNotFound
	}

	contentCopy := *content
	r.contents[content.ID] = &contentCopy

	return nil
}

// DeleteContent removes a content row and cascades to its moderation result,
// children before parent.
func (r *Repository) DeleteContent(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[id]; !exists {
		return simplemoderation.ErrContentNotFound
	}

	delete(r.moderations, id)
	delete(r.contents, id)
	return nil
}

func (r *Repository) ListContent(ctx context.Context, filter simplemoderation.ContentFilter) ([]*simplemoderation.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplemoderation.Content
	for _, content := range r.contents {
		if filter.Language != nil && content.Language != *filter.Language {
			continue
		}
		if filter.UserID != nil && (content.UserID == nil || *content.UserID != *filter.UserID) {
			continue
		}
		contentCopy := *content
		result = append(result, &contentCopy)
	}

	// Sort by created_at descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Moderation operations

func (r *Repository) GetModerationByContentID(ctx context.Context, contentID uuid.UUID) (*simplemoderation.ModerationResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result, exists := r.moderations[contentID]
	if !exists {
		return nil, simplemoderation.ErrModerationNotFound
	}

	resultCopy := *result
	return &resultCopy, nil
}

// SaveModeration inserts or replaces the result for its content id.
func (r *Repository) SaveModeration(ctx context.Context, result *simplemoderation.ModerationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[result.ContentID]; !exists {
		return simplemoderation.ErrContentNotFound
	}

	resultCopy := *result
	r.moderations[result.ContentID] = &resultCopy

	return nil
}

func (r *Repository) DeleteModerationByContentID(ctx context.Context, contentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.moderations[contentID]; !exists {
		return simplemoderation.ErrModerationNotFound
	}

	delete(r.moderations, contentID)
	return nil
}

func (r *Repository) ListModerationResults(ctx context.Context) ([]*simplemoderation.ModerationResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simplemoderation.ModerationResult, 0, len(r.moderations))
	for _, m := range r.moderations {
		mCopy := *m
		result = append(result, &mCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *simplemoderation.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	userCopy := *user
	r.users[user.ID] = &userCopy
	r.usersByName[user.Username] = user.ID

	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*simplemoderation.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, simplemoderation.ErrUserNotFound
	}

	userCopy := *user
	return &userCopy, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*simplemoderation.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.usersByName[username]
	if !exists {
		return nil, simplemoderation.ErrUserNotFound
	}

	userCopy := *r.users[id]
	return &userCopy, nil
}
