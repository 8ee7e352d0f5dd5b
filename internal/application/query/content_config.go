package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsight-hub/finsight-progression/internal/domain/stage"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CONTENT CONFIG QUERY
// Отдаёт конфигурацию адаптации интерфейса и контента под текущий этап:
// какие подсказки показывать, какой сложности материалы подбирать, какие
// учебные промпты вставлять на страницу анализа.
//
// Философия: интерфейс подстраивается под ученика незаметно. Ученик видит
// "свой" уровень сложности, а не переключатель.
// ══════════════════════════════════════════════════════════════════════════════

// GetContentConfigQuery содержит параметры запроса конфигурации контента.
type GetContentConfigQuery struct {
	// LearnerID - псевдонимный ID ученика.
	LearnerID string

	// SessionID - текущая сессия.
	SessionID string

	// CompanyName - компания на странице анализа (для промптов).
	CompanyName string
}

// Validate проверяет корректность параметров.
func (q *GetContentConfigQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner_id must be provided")
	}
	if q.SessionID == "" {
		return errors.New("session_id must be provided")
	}
	return nil
}

// ContentConfigDTO - результат запроса.
type ContentConfigDTO struct {
	LearnerID string              `json:"learner_id"`
	Config    stage.ContentConfig `json:"config"`

	// AdaptationEnabled - false, когда адаптация выключена и отдана
	// конфигурация базового этапа.
	AdaptationEnabled bool `json:"adaptation_enabled"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetContentConfigHandler обрабатывает GetContentConfigQuery.
type GetContentConfigHandler struct {
	assessments *GetStageAssessmentHandler
	log         *logger.Logger

	// enableAdaptation - при false все ученики получают конфигурацию
	// базового этапа (кильсвитч адаптации).
	enableAdaptation bool
}

// NewGetContentConfigHandler создаёт обработчик.
func NewGetContentConfigHandler(
	assessments *GetStageAssessmentHandler,
	log *logger.Logger,
	enableAdaptation bool,
) *GetContentConfigHandler {
	return &GetContentConfigHandler{
		assessments:      assessments,
		log:              log,
		enableAdaptation: enableAdaptation,
	}
}

// Handle выполняет запрос конфигурации контента.
func (h *GetContentConfigHandler) Handle(ctx context.Context, q GetContentConfigQuery) (*ContentConfigDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_content_config: %w", err)
	}

	analysisCtx := stage.AnalysisContext{CompanyName: q.CompanyName}

	if !h.enableAdaptation {
		return &ContentConfigDTO{
			LearnerID:         q.LearnerID,
			Config:            stage.ContentFor(stage.AssessmentResult{CurrentStage: stage.StageGuidedDiscovery}, analysisCtx),
			AdaptationEnabled: false,
		}, nil
	}

	assessment, err := h.assessments.Handle(ctx, GetStageAssessmentQuery{
		LearnerID: q.LearnerID,
		SessionID: q.SessionID,
	})
	if err != nil {
		return nil, err
	}

	return &ContentConfigDTO{
		LearnerID:         q.LearnerID,
		Config:            stage.ContentFor(assessment.Assessment, analysisCtx),
		AdaptationEnabled: true,
	}, nil
}
