package eventhandler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/finsight-hub/finsight-progression/internal/domain/notification"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STREAK BROKEN HANDLER
// Пишет уведомление о прерванной серии активных дней.
//
// Философия: тон мягкий. Прерванная серия — повод вернуться, а не упрёк.
// Короткие серии не заслуживают уведомления вовсе.
// ═══════════════════════════════════════════════════════════════════════════

// OnStreakBrokenHandler обрабатывает событие прерывания серии.
type OnStreakBrokenHandler struct {
	notifications notification.Repository
	log           *logger.Logger

	// minStreakForNotification - серии короче этого порога прерываются молча.
	minStreakForNotification int
}

// NewOnStreakBrokenHandler создаёт обработчик.
func NewOnStreakBrokenHandler(notifications notification.Repository, log *logger.Logger) *OnStreakBrokenHandler {
	return &OnStreakBrokenHandler{
		notifications:            notifications,
		log:                      log.With(logger.Component("on_streak_broken")),
		minStreakForNotification: 3,
	}
}

// Handle обрабатывает событие. Реализует shared.EventHandler.
func (h *OnStreakBrokenHandler) Handle(event shared.Event) error {
	streakEvent, ok := event.(shared.DailyStreakBrokenEvent)
	if !ok {
		h.log.Warn("received non-DailyStreakBrokenEvent",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	if streakEvent.PreviousStreak < h.minStreakForNotification {
		return nil
	}

	ctx := context.Background()

	learnerID, err := shared.NewLearnerID(streakEvent.LearnerID)
	if err != nil {
		h.log.Warn("streak event with invalid learner id", logger.Err(err))
		return nil
	}

	message := fmt.Sprintf(
		"Твоя серия в %d %s прервалась. Один анализ сегодня — и начнётся новая!",
		streakEvent.PreviousStreak,
		dayWord(streakEvent.PreviousStreak),
	)

	n, err := notification.NewNotification(
		notification.NotificationID(uuid.NewString()),
		learnerID,
		notification.NotificationTypeStreakBroken,
		"💔 Серия прервалась",
		message,
		map[string]interface{}{
			"previous_streak": streakEvent.PreviousStreak,
			"days_missed":     streakEvent.DaysMissed,
		},
	)
	if err != nil {
		h.log.Warn("failed to build streak notification", logger.Err(err))
		return nil
	}

	if err := h.notifications.Save(ctx, n); err != nil {
		h.log.Error("failed to save streak notification",
			logger.LearnerID(streakEvent.LearnerID),
			logger.Err(err),
		)
		return err
	}

	return nil
}

// Register подписывает обработчик на шину событий.
func (h *OnStreakBrokenHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventDailyStreakBroken, h.Handle)
}

// dayWord склоняет слово "день" по числу.
func dayWord(n int) string {
	if n%100 >= 11 && n%100 <= 14 {
		return "дней"
	}
	switch n % 10 {
	case 1:
		return "день"
	case 2, 3, 4:
		return "дня"
	default:
		return "дней"
	}
}
