package notification

import (
	"context"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// Repository — хранилище ленты уведомлений.
//
// Реализации: postgres (продакшен) и in-memory (тесты).
type Repository interface {
	// Save сохраняет уведомление.
	Save(ctx context.Context, n *Notification) error

	// GetByID возвращает уведомление по ID.
	// Возвращает shared.ErrNotificationNotFound, если его нет.
	GetByID(ctx context.Context, id NotificationID) (*Notification, error)

	// ListByLearner возвращает уведомления ученика, новые первыми.
	// Элементы — копии: мутация результата не трогает хранилище.
	ListByLearner(ctx context.Context, learnerID shared.LearnerID, p shared.Pagination) ([]Notification, error)

	// CountUnread возвращает число непрочитанных уведомлений.
	CountUnread(ctx context.Context, learnerID shared.LearnerID) (int, error)

	// MarkRead отмечает уведомление прочитанным.
	MarkRead(ctx context.Context, id NotificationID) error
}
