package progress

import (
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// Веса экспоненциального сглаживания (старое значение / новое наблюдение).
const (
	patternSmoothingOld   = 0.90
	researchSmoothingOld  = 0.85
	communitySmoothingOld = 0.90
)

// ═══════════════════════════════════════════════════════════════════════════
// ProgressMetrics — накопительная запись прогресса
// ═══════════════════════════════════════════════════════════════════════════

// ProgressMetrics — единственная накопительная запись на ученика.
// Создаётся лениво при первой активности, обновляется через upsert,
// никогда не удаляется.
type ProgressMetrics struct {
	LearnerID                  shared.LearnerID   `json:"learner_id"`
	AnalysisCount              int                `json:"analysis_count"`
	PatternRecognitionScore    shared.Score       `json:"pattern_recognition_score"`
	ResearchEngagementScore    shared.Score       `json:"research_engagement_score"`
	CommunityContributionScore shared.Score       `json:"community_contribution_score"`
	Streak                     Streak             `json:"streak"`
	TotalSessionTime           float64            `json:"total_session_time"`
	StageProgressionPoints     shared.Points      `json:"stage_progression_points"`
	SkillCompetencies          map[string]float64 `json:"skill_competencies"`
	CreatedAt                  time.Time          `json:"created_at"`
	UpdatedAt                  time.Time          `json:"updated_at"`
}

// NewProgressMetrics создаёт пустую запись для ученика.
func NewProgressMetrics(learnerID shared.LearnerID) *ProgressMetrics {
	now := time.Now()
	return &ProgressMetrics{
		LearnerID:         learnerID,
		Streak:            NewStreak(),
		SkillCompetencies: make(map[string]float64),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// CompletionData — пакет данных о завершённом взаимодействии,
// вливаемый в метрики. Все поля опциональны.
type CompletionData struct {
	// AnalysisCompleted — завершён полный анализ компании.
	AnalysisCompleted bool `json:"analysis_completed,omitempty"`

	// SkillImprovements — аддитивные дельты компетенций, потолок 1.0.
	SkillImprovements map[string]float64 `json:"skill_improvements,omitempty"`

	// PatternPerformance, ResearchQuality, CommunityContribution —
	// свежие наблюдения [0,1], вливаются сглаживанием.
	PatternPerformance    *float64 `json:"pattern_performance,omitempty"`
	ResearchQuality       *float64 `json:"research_quality,omitempty"`
	CommunityContribution *float64 `json:"community_contribution,omitempty"`

	// SessionDuration — секунды, добавляются к общему времени.
	SessionDuration float64 `json:"session_duration,omitempty"`

	// OccurredAt — момент активности; нулевое значение означает "сейчас".
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// ApplyCompletion вливает данные о завершении в метрики и возвращает
// результат пересчёта серии (для событий о прерванной серии).
func (m *ProgressMetrics) ApplyCompletion(data CompletionData) StreakUpdate {
	at := data.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}

	if data.AnalysisCompleted {
		m.AnalysisCount++
	}

	for skill, delta := range data.SkillImprovements {
		v := m.SkillCompetencies[skill] + delta
		m.SkillCompetencies[skill] = shared.Clamp01(v)
	}

	if data.PatternPerformance != nil {
		m.PatternRecognitionScore = m.PatternRecognitionScore.Blend(*data.PatternPerformance, patternSmoothingOld)
	}
	if data.ResearchQuality != nil {
		m.ResearchEngagementScore = m.ResearchEngagementScore.Blend(*data.ResearchQuality, researchSmoothingOld)
	}
	if data.CommunityContribution != nil {
		m.CommunityContributionScore = m.CommunityContributionScore.Blend(*data.CommunityContribution, communitySmoothingOld)
	}

	if data.SessionDuration > 0 {
		m.TotalSessionTime += data.SessionDuration
	}

	update := m.Streak.RecordActivity(at)
	m.UpdatedAt = time.Now()
	return update
}

// AddProgressionPoints добавляет очки за награду. Очки монотонны:
// отрицательные значения игнорируются.
func (m *ProgressMetrics) AddProgressionPoints(amount float64) {
	m.StageProgressionPoints = m.StageProgressionPoints.Add(amount)
	m.UpdatedAt = time.Now()
}

// SkillCompetency возвращает компетенцию по имени (0, если не тронута).
func (m *ProgressMetrics) SkillCompetency(skill string) float64 {
	return m.SkillCompetencies[skill]
}
