package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/domain/notification"
	"github.com/finsight-hub/finsight-progression/internal/domain/progress"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/memory"
)

func TestLearnerProgressEmptyState(t *testing.T) {
	// A learner with no record yet gets an empty summary, not an error.
	handler := NewGetLearnerProgressHandler(memory.NewProgressStore(), nil, quietLogger())

	dto, err := handler.Handle(context.Background(), GetLearnerProgressQuery{LearnerID: testLearner})
	require.NoError(t, err)

	assert.False(t, dto.HasActivity)
	assert.Zero(t, dto.AnalysisCount)
	assert.Empty(t, dto.Badges)
}

func TestLearnerProgressSummary(t *testing.T) {
	store := memory.NewProgressStore()
	handler := NewGetLearnerProgressHandler(store, nil, quietLogger())
	ctx := context.Background()

	learnerID, err := shared.NewLearnerID(testLearner)
	require.NoError(t, err)

	metrics := progress.NewProgressMetrics(learnerID)
	metrics.ApplyCompletion(progress.CompletionData{
		AnalysisCompleted: true,
		SessionDuration:   600,
		SkillImprovements: map[string]float64{progress.SkillTrendAnalysis: 0.4},
	})
	require.NoError(t, store.UpsertMetrics(ctx, metrics))

	dto, err := handler.Handle(ctx, GetLearnerProgressQuery{LearnerID: testLearner})
	require.NoError(t, err)

	assert.True(t, dto.HasActivity)
	assert.Equal(t, 1, dto.AnalysisCount)
	assert.Equal(t, 1, dto.CurrentStreak)
	assert.Equal(t, 10, dto.TotalSessionMinutes)
	assert.InDelta(t, 0.4, dto.SkillCompetencies[progress.SkillTrendAnalysis], 0.001)
}

func TestLearnerProgressIncludesBadges(t *testing.T) {
	store := memory.NewProgressStore()
	handler := NewGetLearnerProgressHandler(store, nil, quietLogger())
	ctx := context.Background()

	learnerID, _ := shared.NewLearnerID(testLearner)
	require.NoError(t, store.UpsertMetrics(ctx, progress.NewProgressMetrics(learnerID)))

	badge, err := progress.NewBadge(progress.BadgeFirstAnalysis, nil, time.Now().UTC())
	require.NoError(t, err)
	_, err = store.SaveBadge(ctx, learnerID, badge)
	require.NoError(t, err)

	dto, err := handler.Handle(ctx, GetLearnerProgressQuery{
		LearnerID:     testLearner,
		IncludeBadges: true,
	})
	require.NoError(t, err)

	require.Len(t, dto.Badges, 1)
	assert.Equal(t, string(progress.BadgeFirstAnalysis), dto.Badges[0].Type)
	assert.NotEmpty(t, dto.Badges[0].DisplayName)

	// Without the flag the list stays empty.
	dto, err = handler.Handle(ctx, GetLearnerProgressQuery{LearnerID: testLearner})
	require.NoError(t, err)
	assert.Empty(t, dto.Badges)
}

func TestLearnerProgressIncludesNotifications(t *testing.T) {
	store := memory.NewProgressStore()
	notifications := memory.NewNotificationRepository()
	handler := NewGetLearnerProgressHandler(store, notifications, quietLogger())
	ctx := context.Background()

	learnerID, _ := shared.NewLearnerID(testLearner)
	require.NoError(t, store.UpsertMetrics(ctx, progress.NewProgressMetrics(learnerID)))

	n, err := notification.NewNotification(
		notification.NotificationID(uuid.NewString()),
		learnerID,
		notification.NotificationTypeBadgeUnlocked,
		"Новая награда",
		"Ты получил награду «Первый анализ».",
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, notifications.Save(ctx, n))

	dto, err := handler.Handle(ctx, GetLearnerProgressQuery{
		LearnerID:            testLearner,
		IncludeNotifications: true,
	})
	require.NoError(t, err)

	require.Len(t, dto.Notifications, 1)
	assert.Equal(t, string(notification.NotificationTypeBadgeUnlocked), dto.Notifications[0].Type)
	assert.False(t, dto.Notifications[0].IsRead)
	assert.Equal(t, 1, dto.UnreadNotifications)
}
