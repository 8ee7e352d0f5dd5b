// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/domain/stage"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STAGE ASSESSMENT QUERY
// Оценивает текущий этап обучения по журналу поведенческих событий сессии.
// Оценка детерминирована и пересчитывается из журнала, поэтому её можно
// агрессивно кешировать: кеш инвалидируется по TTL и по накоплению новых
// событий с момента кеширования.
//
// Философия: этап — это наблюдение, а не статус. Никто не "назначает"
// ученику этап, он выводится из поведения.
// ══════════════════════════════════════════════════════════════════════════════

// GetStageAssessmentQuery содержит параметры запроса оценки этапа.
type GetStageAssessmentQuery struct {
	// LearnerID - псевдонимный ID ученика.
	LearnerID string

	// SessionID - сессия, журнал которой оценивается.
	SessionID string

	// ForceRefresh - пересчитать, игнорируя кеш.
	ForceRefresh bool
}

// Validate проверяет корректность параметров.
func (q *GetStageAssessmentQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner_id must be provided")
	}
	if q.SessionID == "" {
		return errors.New("session_id must be provided")
	}
	return nil
}

// CachedAssessment - кешированная оценка вместе с размером журнала на момент
// кеширования. Разница размеров определяет инвалидацию.
type CachedAssessment struct {
	Assessment stage.AssessmentResult `json:"assessment"`
	EventCount int                    `json:"event_count"`
	CachedAt   time.Time              `json:"cached_at"`
}

// AssessmentCache - порт кеша оценок. Промах - (nil, nil).
type AssessmentCache interface {
	Get(ctx context.Context, sessionID shared.SessionID) (*CachedAssessment, error)
	Set(ctx context.Context, sessionID shared.SessionID, cached CachedAssessment, ttl time.Duration) error
}

// StageAssessmentDTO - результат запроса.
type StageAssessmentDTO struct {
	LearnerID  string                 `json:"learner_id"`
	SessionID  string                 `json:"session_id"`
	Assessment stage.AssessmentResult `json:"assessment"`

	// FromCache - оценка взята из кеша без пересчёта.
	FromCache bool `json:"from_cache"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetStageAssessmentHandler обрабатывает GetStageAssessmentQuery.
type GetStageAssessmentHandler struct {
	eventLog       behavior.EventLogStore
	engine         *stage.Engine
	cache          AssessmentCache
	eventPublisher shared.EventPublisher
	log            *logger.Logger
	group          singleflight.Group

	// Конфигурация
	cacheTTL         time.Duration
	staleAfterEvents int
}

// GetStageAssessmentHandlerConfig содержит конфигурацию обработчика.
type GetStageAssessmentHandlerConfig struct {
	// CacheTTL - срок жизни кешированной оценки.
	CacheTTL time.Duration

	// StaleAfterEvents - сколько новых событий делает кеш устаревшим.
	StaleAfterEvents int
}

// DefaultGetStageAssessmentHandlerConfig возвращает конфигурацию по умолчанию.
func DefaultGetStageAssessmentHandlerConfig() GetStageAssessmentHandlerConfig {
	return GetStageAssessmentHandlerConfig{
		CacheTTL:         1 * time.Hour,
		StaleAfterEvents: 3,
	}
}

// NewGetStageAssessmentHandler создаёт обработчик. Кеш опционален: без него
// каждая оценка пересчитывается.
func NewGetStageAssessmentHandler(
	eventLog behavior.EventLogStore,
	engine *stage.Engine,
	cache AssessmentCache,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
	config GetStageAssessmentHandlerConfig,
) *GetStageAssessmentHandler {
	if config.CacheTTL == 0 {
		config = DefaultGetStageAssessmentHandlerConfig()
	}

	return &GetStageAssessmentHandler{
		eventLog:         eventLog,
		engine:           engine,
		cache:            cache,
		eventPublisher:   eventPublisher,
		log:              log,
		cacheTTL:         config.CacheTTL,
		staleAfterEvents: config.StaleAfterEvents,
	}
}

// Handle выполняет запрос оценки этапа.
func (h *GetStageAssessmentHandler) Handle(ctx context.Context, q GetStageAssessmentQuery) (*StageAssessmentDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_stage_assessment: %w", err)
	}

	sessionID, err := shared.NewSessionID(q.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get_stage_assessment: %w", err)
	}

	dto := &StageAssessmentDTO{
		LearnerID: q.LearnerID,
		SessionID: sessionID.String(),
	}

	// Попытка обслужить из кеша
	var previous *CachedAssessment
	if h.cache != nil {
		cached, err := h.cache.Get(ctx, sessionID)
		if err != nil {
			h.log.Warn("assessment cache read failed",
				logger.SessionName(sessionID.String()),
				logger.Err(err),
			)
		} else if cached != nil {
			previous = cached
			if !q.ForceRefresh && h.isFresh(ctx, sessionID, cached) {
				dto.Assessment = cached.Assessment
				dto.FromCache = true
				return dto, nil
			}
		}
	}

	// Пересчёт. singleflight схлопывает конкурентные пересчёты одной сессии.
	v, err, _ := h.group.Do(sessionID.String(), func() (interface{}, error) {
		return h.recompute(ctx, q.LearnerID, sessionID, previous)
	})
	if err != nil {
		return nil, err
	}

	dto.Assessment = v.(stage.AssessmentResult)
	return dto, nil
}

// isFresh проверяет TTL и счётчик новых событий.
func (h *GetStageAssessmentHandler) isFresh(ctx context.Context, sessionID shared.SessionID, cached *CachedAssessment) bool {
	if time.Since(cached.CachedAt) >= h.cacheTTL {
		return false
	}

	count, err := h.eventLog.Count(ctx, sessionID)
	if err != nil {
		// Не смогли проверить - считаем кеш годным, а не отказываем.
		h.log.Warn("event count check failed, serving cached assessment",
			logger.SessionName(sessionID.String()),
			logger.Err(err),
		)
		return true
	}

	return count-cached.EventCount < h.staleAfterEvents
}

// recompute загружает журнал, пересчитывает оценку, обновляет кеш и публикует
// событие перехода, если новая оценка выше предыдущей.
func (h *GetStageAssessmentHandler) recompute(ctx context.Context, learnerID string, sessionID shared.SessionID, previous *CachedAssessment) (stage.AssessmentResult, error) {
	log, err := h.eventLog.Load(ctx, sessionID)
	if err != nil {
		return stage.AssessmentResult{}, fmt.Errorf("get_stage_assessment: failed to load event log: %w", err)
	}

	assessment := h.engine.Assess(log)

	if h.cache != nil {
		cached := CachedAssessment{
			Assessment: assessment,
			EventCount: log.Len(),
			CachedAt:   time.Now().UTC(),
		}
		if err := h.cache.Set(ctx, sessionID, cached, h.cacheTTL); err != nil {
			h.log.Warn("assessment cache write failed",
				logger.SessionName(sessionID.String()),
				logger.Err(err),
			)
		}
	}

	// Переход на более высокий этап относительно предыдущей оценки
	if previous != nil && h.eventPublisher != nil &&
		assessment.CurrentStage.After(previous.Assessment.CurrentStage) {
		event := shared.NewStageAdvancedEvent(
			learnerID,
			sessionID.String(),
			string(previous.Assessment.CurrentStage),
			string(assessment.CurrentStage),
			assessment.ConfidenceScore,
		)
		if err := h.eventPublisher.Publish(event); err != nil {
			h.log.Warn("failed to publish stage advanced event", logger.Err(err))
		}
	}

	return assessment, nil
}
