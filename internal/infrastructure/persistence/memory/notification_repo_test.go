package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/domain/notification"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

const feedLearner = shared.LearnerID("8d4f9a2b1c3e5f708192a3b4c5d6e7f8")

func feedEntry(id string, createdAt time.Time) *notification.Notification {
	return &notification.Notification{
		ID:        notification.NotificationID(id),
		LearnerID: feedLearner,
		Type:      notification.NotificationTypeBadgeUnlocked,
		Title:     "Новая награда",
		Message:   "🏅 Новая награда: First Steps!",
		Data:      map[string]interface{}{"badge_type": "FIRST_STEPS"},
		CreatedAt: createdAt,
	}
}

func TestNotificationFeedNewestFirst(t *testing.T) {
	repo := NewNotificationRepository()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, feedEntry("n-1", base.Add(-2*time.Hour))))
	require.NoError(t, repo.Save(ctx, feedEntry("n-2", base.Add(-time.Hour))))
	require.NoError(t, repo.Save(ctx, feedEntry("n-3", base)))

	items, err := repo.ListByLearner(ctx, feedLearner, shared.NewPagination(1, 2))
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, notification.NotificationID("n-3"), items[0].ID)
	assert.Equal(t, notification.NotificationID("n-2"), items[1].ID)
}

func TestNotificationFeedReturnsCopies(t *testing.T) {
	// The feed hands out values: a caller mutating the page must not
	// change what the store holds.
	repo := NewNotificationRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, feedEntry("n-1", time.Now().UTC())))

	items, err := repo.ListByLearner(ctx, feedLearner, shared.NewPagination(1, 10))
	require.NoError(t, err)
	require.Len(t, items, 1)

	items[0].Message = "tampered"

	stored, err := repo.GetByID(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "🏅 Новая награда: First Steps!", stored.Message)
}

func TestNotificationFeedUnreadCount(t *testing.T) {
	repo := NewNotificationRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, feedEntry("n-1", now)))
	require.NoError(t, repo.Save(ctx, feedEntry("n-2", now)))

	count, err := repo.CountUnread(ctx, feedLearner)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.MarkRead(ctx, "n-1"))

	count, err = repo.CountUnread(ctx, feedLearner)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
