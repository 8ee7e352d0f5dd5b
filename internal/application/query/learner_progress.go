package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/notification"
	"github.com/finsight-hub/finsight-progression/internal/domain/progress"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEARNER PROGRESS QUERY
// Сводка прогресса ученика: метрики, награды, непрочитанные уведомления.
// Это read model для личного кабинета; он собирается из хранилища прогресса
// без пересчёта оценки этапа.
// ══════════════════════════════════════════════════════════════════════════════

// GetLearnerProgressQuery содержит параметры запроса сводки.
type GetLearnerProgressQuery struct {
	// LearnerID - псевдонимный ID ученика.
	LearnerID string

	// IncludeBadges - включить список наград.
	IncludeBadges bool

	// IncludeNotifications - включить последние уведомления.
	IncludeNotifications bool

	// NotificationLimit - сколько уведомлений вернуть (по умолчанию 10).
	NotificationLimit int
}

// Validate проверяет корректность параметров.
func (q *GetLearnerProgressQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner_id must be provided")
	}
	if q.NotificationLimit <= 0 {
		q.NotificationLimit = 10
	}
	if q.NotificationLimit > 50 {
		q.NotificationLimit = 50
	}
	return nil
}

// BadgeDTO - награда в сводке.
type BadgeDTO struct {
	Type             string    `json:"type"`
	DisplayName      string    `json:"display_name"`
	Description      string    `json:"description"`
	AchievementValue int       `json:"achievement_value"`
	EarnedAt         time.Time `json:"earned_at"`
}

// NotificationDTO - уведомление в сводке.
type NotificationDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// LearnerProgressDTO - сводка прогресса.
type LearnerProgressDTO struct {
	LearnerID string `json:"learner_id"`

	// HasActivity - false для ученика без единой записи прогресса.
	// Остальные поля в этом случае нулевые.
	HasActivity bool `json:"has_activity"`

	AnalysisCount          int     `json:"analysis_count"`
	CurrentStreak          int     `json:"current_streak"`
	BestStreak             int     `json:"best_streak"`
	TotalSessionMinutes    int     `json:"total_session_minutes"`
	StageProgressionPoints float64 `json:"stage_progression_points"`

	PatternRecognitionScore    float64 `json:"pattern_recognition_score"`
	ResearchEngagementScore    float64 `json:"research_engagement_score"`
	CommunityContributionScore float64 `json:"community_contribution_score"`

	SkillCompetencies map[string]float64 `json:"skill_competencies,omitempty"`

	Badges []BadgeDTO `json:"badges,omitempty"`

	Notifications       []NotificationDTO `json:"notifications,omitempty"`
	UnreadNotifications int               `json:"unread_notifications"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetLearnerProgressHandler обрабатывает GetLearnerProgressQuery.
type GetLearnerProgressHandler struct {
	store         progress.Store
	notifications notification.Repository
	log           *logger.Logger
}

// NewGetLearnerProgressHandler создаёт обработчик. Репозиторий уведомлений
// опционален: без него сводка просто не содержит уведомлений.
func NewGetLearnerProgressHandler(
	store progress.Store,
	notifications notification.Repository,
	log *logger.Logger,
) *GetLearnerProgressHandler {
	return &GetLearnerProgressHandler{
		store:         store,
		notifications: notifications,
		log:           log,
	}
}

// Handle выполняет запрос сводки.
func (h *GetLearnerProgressHandler) Handle(ctx context.Context, q GetLearnerProgressQuery) (*LearnerProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_learner_progress: %w", err)
	}

	learnerID, err := shared.NewLearnerID(q.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("get_learner_progress: %w", err)
	}

	dto := &LearnerProgressDTO{LearnerID: learnerID.String()}

	metrics, err := h.store.GetMetrics(ctx, learnerID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("get_learner_progress: failed to load metrics: %w", err)
		}
		// Новый ученик: пустая сводка, не ошибка.
		return dto, nil
	}

	dto.HasActivity = true
	dto.AnalysisCount = metrics.AnalysisCount
	dto.CurrentStreak = metrics.Streak.Current
	dto.BestStreak = metrics.Streak.Best
	dto.TotalSessionMinutes = int(metrics.TotalSessionTime / 60)
	dto.StageProgressionPoints = metrics.StageProgressionPoints.Float64()
	dto.PatternRecognitionScore = metrics.PatternRecognitionScore.Float64()
	dto.ResearchEngagementScore = metrics.ResearchEngagementScore.Float64()
	dto.CommunityContributionScore = metrics.CommunityContributionScore.Float64()
	dto.SkillCompetencies = metrics.SkillCompetencies

	if q.IncludeBadges {
		badges, err := h.store.ListBadges(ctx, learnerID)
		if err != nil {
			return nil, fmt.Errorf("get_learner_progress: failed to load badges: %w", err)
		}
		dto.Badges = make([]BadgeDTO, 0, len(badges))
		for _, b := range badges {
			dto.Badges = append(dto.Badges, BadgeDTO{
				Type:             string(b.Type),
				DisplayName:      b.DisplayName,
				Description:      b.Description,
				AchievementValue: b.AchievementValue,
				EarnedAt:         b.EarnedAt,
			})
		}
	}

	if q.IncludeNotifications && h.notifications != nil {
		items, err := h.notifications.ListByLearner(ctx, learnerID, shared.Pagination{Page: 1, PageSize: q.NotificationLimit})
		if err != nil {
			// Уведомления - вторичная часть сводки, не валим запрос.
			h.log.Warn("failed to load notifications for summary",
				logger.LearnerID(learnerID.String()),
				logger.Err(err),
			)
		} else {
			dto.Notifications = make([]NotificationDTO, 0, len(items))
			for _, n := range items {
				dto.Notifications = append(dto.Notifications, NotificationDTO{
					ID:        n.ID.String(),
					Type:      n.Type.String(),
					Title:     n.Title,
					Message:   n.Message,
					IsRead:    n.IsRead(),
					CreatedAt: n.CreatedAt,
				})
			}
			if unread, err := h.notifications.CountUnread(ctx, learnerID); err == nil {
				dto.UnreadNotifications = unread
			}
		}
	}

	return dto, nil
}
