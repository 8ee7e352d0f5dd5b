package eventhandler

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/domain/notification"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/memory"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

const testLearner = "8d4f9a2b1c3e5f708192a3b4c5d6e7f8"

func quietLogger() *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = io.Discard
	return logger.New(opts)
}

func listNotifications(t *testing.T, repo *memory.NotificationRepository) []notification.Notification {
	t.Helper()
	items, err := repo.ListByLearner(
		context.Background(),
		shared.LearnerID(testLearner),
		shared.DefaultPagination(),
	)
	require.NoError(t, err)
	return items
}

func TestOnBadgeUnlockedWritesNotification(t *testing.T) {
	repo := memory.NewNotificationRepository()
	handler := NewOnBadgeUnlockedHandler(repo, quietLogger())

	event := shared.NewBadgeUnlockedEvent(testLearner, "first_analysis", "Первый анализ", 10).
		WithStage("guided_discovery")
	require.NoError(t, handler.Handle(event))

	items := listNotifications(t, repo)
	require.Len(t, items, 1)
	assert.Equal(t, notification.NotificationTypeBadgeUnlocked, items[0].Type)
	assert.Contains(t, items[0].Title, "Первый анализ")
	assert.Equal(t, "first_analysis", items[0].Data["badge_type"])
}

func TestOnBadgeUnlockedIgnoresForeignEvents(t *testing.T) {
	repo := memory.NewNotificationRepository()
	handler := NewOnBadgeUnlockedHandler(repo, quietLogger())

	event := shared.NewInteractionRecordedEvent(testLearner, "session", "tooltip_usage", 5)
	require.NoError(t, handler.Handle(event))
	assert.Empty(t, listNotifications(t, repo))
}

func TestOnBadgeUnlockedInvalidLearnerIsSilent(t *testing.T) {
	repo := memory.NewNotificationRepository()
	handler := NewOnBadgeUnlockedHandler(repo, quietLogger())

	event := shared.NewBadgeUnlockedEvent("not-a-learner-id", "first_analysis", "Первый анализ", 10)
	require.NoError(t, handler.Handle(event))
	assert.Empty(t, listNotifications(t, repo))
}

func TestOnStreakBrokenWritesNotification(t *testing.T) {
	repo := memory.NewNotificationRepository()
	handler := NewOnStreakBrokenHandler(repo, quietLogger())

	event := shared.NewDailyStreakBrokenEvent(testLearner, 7, 3)
	require.NoError(t, handler.Handle(event))

	items := listNotifications(t, repo)
	require.Len(t, items, 1)
	assert.Equal(t, notification.NotificationTypeStreakBroken, items[0].Type)
	assert.Contains(t, items[0].Message, "7 дней")
}

func TestOnStreakBrokenSkipsShortStreaks(t *testing.T) {
	// Streaks below the threshold break silently.
	repo := memory.NewNotificationRepository()
	handler := NewOnStreakBrokenHandler(repo, quietLogger())

	event := shared.NewDailyStreakBrokenEvent(testLearner, 2, 4)
	require.NoError(t, handler.Handle(event))
	assert.Empty(t, listNotifications(t, repo))
}

func TestDayWordDeclension(t *testing.T) {
	cases := map[int]string{
		1:  "день",
		2:  "дня",
		4:  "дня",
		5:  "дней",
		11: "дней",
		12: "дней",
		21: "день",
		23: "дня",
	}
	for n, want := range cases {
		assert.Equal(t, want, dayWord(n), "n=%d", n)
	}
}
