package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
)

func TestCheckMilestoneCascade(t *testing.T) {
	// A learner arriving at 100 analyses with no milestone badges yet must
	// surface GOLD_ANALYST and every lower milestone in one pass.
	engine := NewRuleEngine()
	m := NewProgressMetrics(testLearner)
	m.AnalysisCount = 100

	newly := engine.CheckAchievementConditions(m, nil, nil)

	assert.Contains(t, newly, BadgeGoldAnalyst)
	assert.Contains(t, newly, BadgeSilverAnalyst)
	assert.Contains(t, newly, BadgeBronzeAnalyst)
	assert.Contains(t, newly, BadgeFirstAnalysis)
	assert.NotContains(t, newly, BadgePlatinumAnalyst)
}

func TestCheckSkipsAlreadyEarned(t *testing.T) {
	engine := NewRuleEngine()
	m := NewProgressMetrics(testLearner)
	m.AnalysisCount = 10

	earned := map[BadgeType]bool{BadgeFirstAnalysis: true}
	newly := engine.CheckAchievementConditions(m, earned, nil)

	assert.Contains(t, newly, BadgeBronzeAnalyst)
	assert.NotContains(t, newly, BadgeFirstAnalysis)
}

func TestCheckIdempotentWithoutNewData(t *testing.T) {
	engine := NewRuleEngine()
	m := NewProgressMetrics(testLearner)
	m.AnalysisCount = 10

	first := engine.CheckAchievementConditions(m, nil, nil)
	assert.NotEmpty(t, first)

	earned := make(map[BadgeType]bool)
	for _, b := range first {
		earned[b] = true
	}

	second := engine.CheckAchievementConditions(m, earned, nil)
	assert.Empty(t, second)
}

func TestPatternMasterSamePassUnion(t *testing.T) {
	// The third skill badge and PATTERN_MASTER unlock in the same pass.
	engine := NewRuleEngine()
	m := NewProgressMetrics(testLearner)
	m.SkillCompetencies = map[string]float64{
		SkillTrendAnalysis:   0.9,
		SkillValueAssessment: 0.85,
		SkillRiskEvaluation:  0.8,
	}

	earned := map[BadgeType]bool{
		BadgeTrendSpotter: true,
		BadgeValueHunter:  true,
	}

	newly := engine.CheckAchievementConditions(m, earned, nil)
	assert.Contains(t, newly, BadgeRiskDetector)
	assert.Contains(t, newly, BadgePatternMaster)
}

func TestPatternMasterRequiresAllThree(t *testing.T) {
	engine := NewRuleEngine()
	m := NewProgressMetrics(testLearner)
	m.SkillCompetencies = map[string]float64{
		SkillTrendAnalysis: 0.9,
	}

	newly := engine.CheckAchievementConditions(m, nil, nil)
	assert.Contains(t, newly, BadgeTrendSpotter)
	assert.NotContains(t, newly, BadgePatternMaster)
}

func TestStreakBadges(t *testing.T) {
	engine := NewRuleEngine()
	m := NewProgressMetrics(testLearner)
	m.Streak.Current = 30
	m.Streak.Best = 30

	newly := engine.CheckAchievementConditions(m, nil, nil)
	assert.Contains(t, newly, BadgeWeekStreak)
	assert.Contains(t, newly, BadgeMonthStreak)
	assert.NotContains(t, newly, BadgeQuarterStreak)
}

func TestMentorBadgeUsesInteractionCounts(t *testing.T) {
	engine := NewRuleEngine()
	m := NewProgressMetrics(testLearner)

	achCtx := &AchievementContext{
		LearnerID: testLearner,
		InteractionCounts: map[behavior.InteractionType]int{
			behavior.InteractionCommunityContribution: 10,
		},
	}

	newly := engine.CheckAchievementConditions(m, nil, achCtx)
	assert.Contains(t, newly, BadgeMentor)

	// Without the context the criterion cannot fire.
	newly = engine.CheckAchievementConditions(m, nil, nil)
	assert.NotContains(t, newly, BadgeMentor)
}

func TestNewBadgeFromCatalogue(t *testing.T) {
	achCtx := &AchievementContext{
		LearnerID: testLearner,
		SessionID: "5f0c1de2-9a34-4c1b-8f5e-aa01b2c3d4e5",
	}

	badge, err := NewBadge(BadgeGoldAnalyst, achCtx, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, BadgeGoldAnalyst, badge.Type)
	assert.Equal(t, "Gold Analyst", badge.DisplayName)
	assert.Equal(t, 100, badge.AchievementValue)
	assert.Equal(t, "5f0c1de2-9a34-4c1b-8f5e-aa01b2c3d4e5", badge.Context["session_id"])

	_, err = NewBadge(BadgeType("SHINY_THING"), achCtx, time.Now())
	assert.Error(t, err)
}

func TestEarnedSet(t *testing.T) {
	set := EarnedSet([]Badge{
		{Type: BadgeFirstAnalysis},
		{Type: BadgeWeekStreak},
	})
	assert.True(t, set[BadgeFirstAnalysis])
	assert.True(t, set[BadgeWeekStreak])
	assert.False(t, set[BadgeGoldAnalyst])
}
