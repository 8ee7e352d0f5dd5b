// Package notification содержит доменную модель уведомлений о прогрессе.
// Уведомления здесь — персистентные записи в ленте ученика (новая награда,
// прерванная серия, переход на новый этап), а не канал доставки: их читает
// интерфейс платформы, когда ученик возвращается.
package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationID представляет уникальный идентификатор уведомления.
type NotificationID string

// IsValid проверяет, что ID не пустой.
func (id NotificationID) IsValid() bool {
	return len(id) > 0
}

// String возвращает строковое представление ID.
func (id NotificationID) String() string {
	return string(id)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationType определяет тип уведомления.
type NotificationType string

const (
	// NotificationTypeBadgeUnlocked - получена новая награда.
	// "🏅 Новая награда: Gold Analyst!"
	NotificationTypeBadgeUnlocked NotificationType = "badge_unlocked"

	// NotificationTypeStreakBroken - серия активных дней прервана.
	// "💔 Твоя серия в 12 дней прервалась. Начни новую!"
	NotificationTypeStreakBroken NotificationType = "streak_broken"

	// NotificationTypeStreakMilestone - достигнута веха серии.
	// "🔥 Серия 7 дней! Так держать!"
	NotificationTypeStreakMilestone NotificationType = "streak_milestone"

	// NotificationTypeStageAdvanced - переход на следующий этап обучения.
	// "📈 Ты перешёл на этап Independent Thinking!"
	NotificationTypeStageAdvanced NotificationType = "stage_advanced"

	// NotificationTypeWelcome - приветствие нового ученика.
	// "👋 Добро пожаловать! Начни с первого анализа"
	NotificationTypeWelcome NotificationType = "welcome"
)

// IsValid проверяет, что тип уведомления корректен.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeBadgeUnlocked,
		NotificationTypeStreakBroken,
		NotificationTypeStreakMilestone,
		NotificationTypeStageAdvanced,
		NotificationTypeWelcome:
		return true
	default:
		return false
	}
}

// Emoji возвращает эмодзи для данного типа уведомления.
func (t NotificationType) Emoji() string {
	switch t {
	case NotificationTypeBadgeUnlocked:
		return "🏅"
	case NotificationTypeStreakBroken:
		return "💔"
	case NotificationTypeStreakMilestone:
		return "🔥"
	case NotificationTypeStageAdvanced:
		return "📈"
	case NotificationTypeWelcome:
		return "👋"
	default:
		return "📬"
	}
}

// String возвращает строковое представление типа.
func (t NotificationType) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Notification — запись в ленте прогресса ученика. Append-only: записи
// создаются и читаются, но никогда не изменяются (кроме отметки о прочтении).
type Notification struct {
	// ID - уникальный идентификатор уведомления.
	ID NotificationID

	// LearnerID - получатель.
	LearnerID shared.LearnerID

	// Type - тип уведомления.
	Type NotificationType

	// Title - заголовок (опционально).
	Title string

	// Message - текст уведомления.
	Message string

	// Data - произвольные данные для форматирования на клиенте.
	Data map[string]interface{}

	// ReadAt - время прочтения (nil = не прочитано).
	ReadAt *time.Time

	// CreatedAt - время создания.
	CreatedAt time.Time
}

// NewNotification создаёт новое уведомление с валидацией.
func NewNotification(id NotificationID, learnerID shared.LearnerID, t NotificationType, title, message string, data map[string]interface{}) (*Notification, error) {
	if !id.IsValid() {
		return nil, ErrInvalidNotificationID
	}
	if learnerID.IsEmpty() {
		return nil, ErrInvalidRecipient
	}
	if !t.IsValid() {
		return nil, ErrInvalidNotificationType
	}
	if message == "" {
		return nil, ErrEmptyMessage
	}

	return &Notification{
		ID:        id,
		LearnerID: learnerID,
		Type:      t,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MarkRead отмечает уведомление прочитанным. Повторный вызов — no-op.
func (n *Notification) MarkRead(at time.Time) {
	if n.ReadAt != nil {
		return
	}
	t := at.UTC()
	n.ReadAt = &t
}

// IsRead возвращает true, если уведомление прочитано.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// String возвращает строковое представление для логирования.
func (n *Notification) String() string {
	return fmt.Sprintf(
		"Notification{ID: %s, Type: %s, Learner: %s}",
		n.ID, n.Type, n.LearnerID,
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidNotificationID - невалидный ID уведомления.
	ErrInvalidNotificationID = errors.New("invalid notification id: cannot be empty")

	// ErrInvalidNotificationType - невалидный тип уведомления.
	ErrInvalidNotificationType = errors.New("invalid notification type")

	// ErrInvalidRecipient - невалидный получатель.
	ErrInvalidRecipient = errors.New("invalid recipient: learner id cannot be empty")

	// ErrEmptyMessage - пустое сообщение.
	ErrEmptyMessage = errors.New("notification message cannot be empty")
)
