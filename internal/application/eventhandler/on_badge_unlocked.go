// Package eventhandler содержит обработчики доменных событий.
// Обработчики — "реактивная" часть системы: они подписаны на шину событий
// и запускают побочные эффекты вроде записи уведомлений в ленту ученика.
//
// Все эффекты здесь best-effort: ошибка обработчика логируется и не влияет
// на операцию, породившую событие.
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
// ON BADGE UNLOCKED HANDLER
// Пишет уведомление в ленту ученика при выдаче награды.
//
// Философия: награда должна быть замечена. Даже если ученик оффлайн в момент
// выдачи, запись в ленте встретит его при следующем входе.
// ═══════════════════════════════════════════════════════════════════════════

// OnBadgeUnlockedHandler обрабатывает событие выдачи награды.
type OnBadgeUnlockedHandler struct {
	notifications notification.Repository
	log           *logger.Logger
}

// NewOnBadgeUnlockedHandler создаёт обработчик.
func NewOnBadgeUnlockedHandler(notifications notification.Repository, log *logger.Logger) *OnBadgeUnlockedHandler {
	return &OnBadgeUnlockedHandler{
		notifications: notifications,
		log:           log.With(logger.Component("on_badge_unlocked")),
	}
}

// Handle обрабатывает событие. Реализует shared.EventHandler.
func (h *OnBadgeUnlockedHandler) Handle(event shared.Event) error {
	badgeEvent, ok := event.(shared.BadgeUnlockedEvent)
	if !ok {
		h.log.Warn("received non-BadgeUnlockedEvent",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	ctx := context.Background()

	learnerID, err := shared.NewLearnerID(badgeEvent.LearnerID)
	if err != nil {
		h.log.Warn("badge event with invalid learner id", logger.Err(err))
		return nil
	}

	title := fmt.Sprintf("🏅 Новая награда: %s!", badgeEvent.DisplayName)
	message := fmt.Sprintf(
		"Ты получил награду «%s» (+%d очков прогресса).",
		badgeEvent.DisplayName,
		badgeEvent.AchievementValue,
	)

	n, err := notification.NewNotification(
		notification.NotificationID(uuid.NewString()),
		learnerID,
		notification.NotificationTypeBadgeUnlocked,
		title,
		message,
		map[string]interface{}{
			"badge_type":        badgeEvent.BadgeType,
			"achievement_value": badgeEvent.AchievementValue,
			"stage":             badgeEvent.Stage,
		},
	)
	if err != nil {
		h.log.Warn("failed to build badge notification", logger.Err(err))
		return nil
	}

	if err := h.notifications.Save(ctx, n); err != nil {
		h.log.Error("failed to save badge notification",
			logger.LearnerID(badgeEvent.LearnerID),
			logger.BadgeName(badgeEvent.BadgeType),
			logger.Err(err),
		)
		return err
	}

	h.log.Debug("badge notification saved",
		logger.LearnerID(badgeEvent.LearnerID),
		logger.BadgeName(badgeEvent.BadgeType),
	)
	return nil
}

// Register подписывает обработчик на шину событий.
func (h *OnBadgeUnlockedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventBadgeUnlocked, h.Handle)
}
