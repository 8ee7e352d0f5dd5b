package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsight-hub/finsight-progression/internal/domain/stage"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STAGE PROGRESS QUERY
// Отдаёт данные прогресса для виджета "твой путь аналитика". Виджет
// показывается только когда оценка достаточно уверенная: ранний или шумный
// прогресс-бар демотивирует сильнее, чем его отсутствие.
// ══════════════════════════════════════════════════════════════════════════════

// GetStageProgressQuery содержит параметры запроса прогресса.
type GetStageProgressQuery struct {
	// LearnerID - псевдонимный ID ученика.
	LearnerID string

	// SessionID - текущая сессия.
	SessionID string
}

// Validate проверяет корректность параметров.
func (q *GetStageProgressQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner_id must be provided")
	}
	if q.SessionID == "" {
		return errors.New("session_id must be provided")
	}
	return nil
}

// StageProgressDTO - результат запроса.
type StageProgressDTO struct {
	LearnerID string `json:"learner_id"`

	// Available - false, когда данных для уверенного отображения мало.
	// Progress в этом случае nil, и виджет скрывается.
	Available bool `json:"available"`

	Progress *stage.ProgressData `json:"progress,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetStageProgressHandler обрабатывает GetStageProgressQuery.
type GetStageProgressHandler struct {
	assessments *GetStageAssessmentHandler
}

// NewGetStageProgressHandler создаёт обработчик.
func NewGetStageProgressHandler(assessments *GetStageAssessmentHandler) *GetStageProgressHandler {
	return &GetStageProgressHandler{assessments: assessments}
}

// Handle выполняет запрос прогресса.
func (h *GetStageProgressHandler) Handle(ctx context.Context, q GetStageProgressQuery) (*StageProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_stage_progress: %w", err)
	}

	assessment, err := h.assessments.Handle(ctx, GetStageAssessmentQuery{
		LearnerID: q.LearnerID,
		SessionID: q.SessionID,
	})
	if err != nil {
		return nil, err
	}

	progress, ok := stage.ProgressDataFrom(assessment.Assessment)
	return &StageProgressDTO{
		LearnerID: q.LearnerID,
		Available: ok,
		Progress:  progress,
	}, nil
}
