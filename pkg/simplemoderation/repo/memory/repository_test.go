package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/repo/memory"
)

func newContent(text, language string) *simplemoderation.Content {
	now := time.Now().UTC()
	return &simplemoderation.Content{
		ID:        uuid.New(),
		Text:      text,
		Language:  language,
		Source:    "web",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestContentCRUD(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	content := newContent("hello", "en")
	require.NoError(t, repo.CreateContent(ctx, content))

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := repo.GetContent(ctx, content.ID)
		require.NoError(t, err)
		assert.Equal(t, content.Text, got.Text)

		got.Text = "mutated"
		again, err := repo.GetContent(ctx, content.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", again.Text)
	})

	t.Run("update replaces the row", func(t *testing.T) {
		updated := *content
		updated.Text = "edited"
		require.NoError(t, repo.UpdateContent(ctx, &updated))

		got, err := repo.GetContent(ctx, content.ID)
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Text)
	})

	t.Run("update of unknown row fails", func(t *testing.T) {
		ghost := newContent("ghost", "en")
		err := repo.UpdateContent(ctx, ghost)
		assert.ErrorIs(t, err, simplemoderation.ErrContentNotFound)
	})

	t.Run("delete removes the row", func(t *testing.T) {
		require.NoError(t, repo.DeleteContent(ctx, content.ID))

		_, err := repo.GetContent(ctx, content.ID)
		assert.ErrorIs(t, err, simplemoderation.ErrContentNotFound)

		err = repo.DeleteContent(ctx, content.ID)
		assert.ErrorIs(t, err, simplemoderation.ErrContentNotFound)
	})
}

func TestListContentFilters(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	userID := uuid.New()

	first := newContent("first", "en")
	first.UserID = &userID
	first.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, repo.CreateContent(ctx, first))

	second := newContent("second", "fr")
	second.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	require.NoError(t, repo.CreateContent(ctx, second))

	third := newContent("third", "en")
	third.CreatedAt = time.Now().UTC()
	require.NoError(t, repo.CreateContent(ctx, third))

	t.Run("unfiltered list is newest first", func(t *testing.T) {
		list, err := repo.ListContent(ctx, simplemoderation.ContentFilter{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "third", list[0].Text)
		assert.Equal(t, "first", list[2].Text)
	})

	t.Run("language filter", func(t *testing.T) {
		lang := "en"
		list, err := repo.ListContent(ctx, simplemoderation.ContentFilter{Language: &lang})
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("user filter excludes anonymous content", func(t *testing.T) {
		list, err := repo.ListContent(ctx, simplemoderation.ContentFilter{UserID: &userID})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, first.ID, list[0].ID)
	})

	t.Run("combined filters", func(t *testing.T) {
		lang := "fr"
		list, err := repo.ListContent(ctx, simplemoderation.ContentFilter{Language: &lang, UserID: &userID})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestModerationKeyedByContent(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	content := newContent("moderate me", "en")
	require.NoError(t, repo.CreateContent(ctx, content))

	t.Run("save requires an existing content", func(t *testing.T) {
		err := repo.SaveModeration(ctx, &simplemoderation.ModerationResult{
			ID:        uuid.New(),
			ContentID: uuid.New(),
			Status:    simplemoderation.StatusApproved,
		})
		assert.ErrorIs(t, err, simplemoderation.ErrContentNotFound)
	})

	result := &simplemoderation.ModerationResult{
		ID:         uuid.New(),
		ContentID:  content.ID,
		Status:     simplemoderation.StatusApproved,
		Categories: []string{},
		Confidence: 90,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.SaveModeration(ctx, result))

	t.Run("second save replaces instead of duplicating", func(t *testing.T) {
		replacement := *result
		replacement.Status = simplemoderation.StatusRejected
		require.NoError(t, repo.SaveModeration(ctx, &replacement))

		got, err := repo.GetModerationByContentID(ctx, content.ID)
		require.NoError(t, err)
		assert.Equal(t, simplemoderation.StatusRejected, got.Status)

		all, err := repo.ListModerationResults(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("delete cascades from content", func(t *testing.T) {
		require.NoError(t, repo.DeleteContent(ctx, content.ID))

		_, err := repo.GetModerationByContentID(ctx, content.ID)
		assert.ErrorIs(t, err, simplemoderation.ErrModerationNotFound)
	})
}

func TestUserLookup(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	user := &simplemoderation.User{
		ID:        uuid.New(),
		Username:  "alice",
		Password:  "secret",
		Role:      "user",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateUser(ctx, user))

	byID, err := repo.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = repo.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, simplemoderation.ErrUserNotFound)
}
