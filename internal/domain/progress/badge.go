package progress

import (
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
)

// ═══════════════════════════════════════════════════════════════════════════
// Badge — неизменяемая награда
// ═══════════════════════════════════════════════════════════════════════════

// BadgeType — тип награды. Каждый тип выдаётся ученику не более одного раза.
type BadgeType string

const (
	// Семейство вех (пороги по числу анализов).
	BadgeFirstAnalysis   BadgeType = "FIRST_ANALYSIS"
	BadgeBronzeAnalyst   BadgeType = "BRONZE_ANALYST"
	BadgeSilverAnalyst   BadgeType = "SILVER_ANALYST"
	BadgeGoldAnalyst     BadgeType = "GOLD_ANALYST"
	BadgePlatinumAnalyst BadgeType = "PLATINUM_ANALYST"

	// Семейство распознавания паттернов (компетенции).
	BadgeTrendSpotter  BadgeType = "TREND_SPOTTER"
	BadgeValueHunter   BadgeType = "VALUE_HUNTER"
	BadgeRiskDetector  BadgeType = "RISK_DETECTOR"
	BadgePatternMaster BadgeType = "PATTERN_MASTER"

	// Семейство серий.
	BadgeWeekStreak    BadgeType = "WEEK_STREAK"
	BadgeMonthStreak   BadgeType = "MONTH_STREAK"
	BadgeQuarterStreak BadgeType = "QUARTER_STREAK"

	// Семейство перехода по этапам (очки прогрессии).
	BadgeStageAssisted    BadgeType = "STAGE_ASSISTED"
	BadgeStageIndependent BadgeType = "STAGE_INDEPENDENT"
	BadgeStageMaster      BadgeType = "STAGE_MASTER"

	// Семейство исследований и сообщества.
	BadgeResearcher     BadgeType = "RESEARCHER"
	BadgeCommunityVoice BadgeType = "COMMUNITY_VOICE"
	BadgeMentor         BadgeType = "MENTOR"
)

// IsValid проверяет, известен ли тип награды.
func (t BadgeType) IsValid() bool {
	_, ok := definitionIndex[t]
	return ok
}

// String возвращает строковое представление.
func (t BadgeType) String() string {
	return string(t)
}

// Имена компетенций, используемые семейством паттернов.
const (
	SkillTrendAnalysis   = "trend_analysis"
	SkillValueAssessment = "value_assessment"
	SkillRiskEvaluation  = "risk_evaluation"
)

// Badge — выданная награда. Неизменяема после сохранения.
type Badge struct {
	Type             BadgeType              `json:"badge_type"`
	EarnedAt         time.Time              `json:"earned_timestamp"`
	Context          map[string]interface{} `json:"context,omitempty"`
	DisplayName      string                 `json:"display_name"`
	Description      string                 `json:"description"`
	AchievementValue int                    `json:"achievement_value"`
}

// CriteriaInput — снимок состояния, по которому оценивается критерий.
// Earned содержит уже выданные награды ПЛЮС награды, открытые ранее в том же
// проходе: награда может стать доступной в том же вызове, который открыл её
// предпосылки.
type CriteriaInput struct {
	Metrics *ProgressMetrics
	Earned  map[BadgeType]bool
	Ctx     *AchievementContext
}

// BadgeDefinition — декларативное описание награды из каталога.
type BadgeDefinition struct {
	Type             BadgeType
	DisplayName      string
	Description      string
	Emoji            string
	AchievementValue int
	Criteria         func(in CriteriaInput) bool
}

// analysisCountAtLeast — общий критерий семейства вех.
func analysisCountAtLeast(threshold int) func(CriteriaInput) bool {
	return func(in CriteriaInput) bool {
		return in.Metrics != nil && in.Metrics.AnalysisCount >= threshold
	}
}

// skillAtLeast — общий критерий компетенций.
func skillAtLeast(skill string, threshold float64) func(CriteriaInput) bool {
	return func(in CriteriaInput) bool {
		return in.Metrics != nil && in.Metrics.SkillCompetency(skill) >= threshold
	}
}

// streakAtLeast — общий критерий серий.
func streakAtLeast(days int) func(CriteriaInput) bool {
	return func(in CriteriaInput) bool {
		return in.Metrics != nil && in.Metrics.Streak.Current >= days
	}
}

// pointsAtLeast — общий критерий перехода по этапам.
func pointsAtLeast(points float64) func(CriteriaInput) bool {
	return func(in CriteriaInput) bool {
		return in.Metrics != nil && in.Metrics.StageProgressionPoints.Float64() >= points
	}
}

// badgeCatalogue — полный каталог наград. Порядок имеет значение: награды с
// предпосылками (PATTERN_MASTER) идут после своих предпосылок, чтобы
// объединение "выданные + новые в этом проходе" успело пополниться.
var badgeCatalogue = []BadgeDefinition{
	// Вехи: 1 / 10 / 50 / 100 / 500 анализов.
	{
		Type:             BadgeFirstAnalysis,
		DisplayName:      "First Analysis",
		Description:      "Completed your first full company analysis",
		Emoji:            "🔍",
		AchievementValue: 10,
		Criteria:         analysisCountAtLeast(1),
	},
	{
		Type:             BadgeBronzeAnalyst,
		DisplayName:      "Bronze Analyst",
		Description:      "Completed 10 company analyses",
		Emoji:            "🥉",
		AchievementValue: 25,
		Criteria:         analysisCountAtLeast(10),
	},
	{
		Type:             BadgeSilverAnalyst,
		DisplayName:      "Silver Analyst",
		Description:      "Completed 50 company analyses",
		Emoji:            "🥈",
		AchievementValue: 50,
		Criteria:         analysisCountAtLeast(50),
	},
	{
		Type:             BadgeGoldAnalyst,
		DisplayName:      "Gold Analyst",
		Description:      "Completed 100 company analyses",
		Emoji:            "🥇",
		AchievementValue: 100,
		Criteria:         analysisCountAtLeast(100),
	},
	{
		Type:             BadgePlatinumAnalyst,
		DisplayName:      "Platinum Analyst",
		Description:      "Completed 500 company analyses",
		Emoji:            "💎",
		AchievementValue: 250,
		Criteria:         analysisCountAtLeast(500),
	},

	// Паттерны: три компетенции по 0.8 и мастер поверх них.
	{
		Type:             BadgeTrendSpotter,
		DisplayName:      "Trend Spotter",
		Description:      "Mastered trend analysis",
		Emoji:            "📈",
		AchievementValue: 40,
		Criteria:         skillAtLeast(SkillTrendAnalysis, 0.8),
	},
	{
		Type:             BadgeValueHunter,
		DisplayName:      "Value Hunter",
		Description:      "Mastered value assessment",
		Emoji:            "🎯",
		AchievementValue: 40,
		Criteria:         skillAtLeast(SkillValueAssessment, 0.8),
	},
	{
		Type:             BadgeRiskDetector,
		DisplayName:      "Risk Detector",
		Description:      "Mastered risk evaluation",
		Emoji:            "🛡️",
		AchievementValue: 40,
		Criteria:         skillAtLeast(SkillRiskEvaluation, 0.8),
	},
	{
		Type:             BadgePatternMaster,
		DisplayName:      "Pattern Master",
		Description:      "Earned all three pattern mastery badges",
		Emoji:            "🏆",
		AchievementValue: 150,
		Criteria: func(in CriteriaInput) bool {
			return in.Earned[BadgeTrendSpotter] &&
				in.Earned[BadgeValueHunter] &&
				in.Earned[BadgeRiskDetector]
		},
	},

	// Серии: 7 / 30 / 90 дней.
	{
		Type:             BadgeWeekStreak,
		DisplayName:      "Week Streak",
		Description:      "Active 7 days in a row",
		Emoji:            "🔥",
		AchievementValue: 30,
		Criteria:         streakAtLeast(7),
	},
	{
		Type:             BadgeMonthStreak,
		DisplayName:      "Month Streak",
		Description:      "Active 30 days in a row",
		Emoji:            "🚀",
		AchievementValue: 100,
		Criteria:         streakAtLeast(30),
	},
	{
		Type:             BadgeQuarterStreak,
		DisplayName:      "Quarter Streak",
		Description:      "Active 90 days in a row",
		Emoji:            "🌟",
		AchievementValue: 300,
		Criteria:         streakAtLeast(90),
	},

	// Переходы по этапам: пороги очков прогрессии.
	{
		Type:             BadgeStageAssisted,
		DisplayName:      "Assisted Analyst",
		Description:      "Graduated to assisted analysis",
		Emoji:            "🧭",
		AchievementValue: 50,
		Criteria:         pointsAtLeast(50),
	},
	{
		Type:             BadgeStageIndependent,
		DisplayName:      "Independent Thinker",
		Description:      "Graduated to independent thinking",
		Emoji:            "🧠",
		AchievementValue: 100,
		Criteria:         pointsAtLeast(150),
	},
	{
		Type:             BadgeStageMaster,
		DisplayName:      "Analytical Master",
		Description:      "Reached analytical mastery",
		Emoji:            "👑",
		AchievementValue: 200,
		Criteria:         pointsAtLeast(400),
	},

	// Исследования и сообщество.
	{
		Type:             BadgeResearcher,
		DisplayName:      "Researcher",
		Description:      "Sustained deep research engagement",
		Emoji:            "📚",
		AchievementValue: 60,
		Criteria: func(in CriteriaInput) bool {
			return in.Metrics != nil && in.Metrics.ResearchEngagementScore.Float64() >= 0.7
		},
	},
	{
		Type:             BadgeCommunityVoice,
		DisplayName:      "Community Voice",
		Description:      "Became a recognized community contributor",
		Emoji:            "📣",
		AchievementValue: 60,
		Criteria: func(in CriteriaInput) bool {
			return in.Metrics != nil && in.Metrics.CommunityContributionScore.Float64() >= 0.6
		},
	},
	{
		Type:             BadgeMentor,
		DisplayName:      "Mentor",
		Description:      "Regularly helps others learn",
		Emoji:            "🤝",
		AchievementValue: 120,
		Criteria: func(in CriteriaInput) bool {
			if in.Ctx == nil {
				return false
			}
			return in.Ctx.InteractionCounts[behavior.InteractionCommunityContribution] >= 10
		},
	},
}

// definitionIndex — каталог по типу для быстрых выборок.
var definitionIndex = func() map[BadgeType]BadgeDefinition {
	idx := make(map[BadgeType]BadgeDefinition, len(badgeCatalogue))
	for _, def := range badgeCatalogue {
		idx[def.Type] = def
	}
	return idx
}()

// BadgeDefinitions возвращает каталог в порядке оценки.
func BadgeDefinitions() []BadgeDefinition {
	return badgeCatalogue
}

// DefinitionFor возвращает описание награды по типу.
func DefinitionFor(t BadgeType) (BadgeDefinition, bool) {
	def, ok := definitionIndex[t]
	return def, ok
}
