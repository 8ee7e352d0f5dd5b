package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/pkg/timeutil"
)

const testLearner = shared.LearnerID("8d4f9a2b1c3e5f708192a3b4c5d6e7f8")

func floatPtr(v float64) *float64 { return &v }

func TestApplyCompletionAnalysisCountThreeTimes(t *testing.T) {
	m := NewProgressMetrics(testLearner)

	for i := 0; i < 3; i++ {
		m.ApplyCompletion(CompletionData{AnalysisCompleted: true})
	}

	assert.Equal(t, 3, m.AnalysisCount)
}

func TestApplyCompletionSkillImprovementsClampedAtOne(t *testing.T) {
	m := NewProgressMetrics(testLearner)

	m.ApplyCompletion(CompletionData{SkillImprovements: map[string]float64{SkillTrendAnalysis: 0.7}})
	m.ApplyCompletion(CompletionData{SkillImprovements: map[string]float64{SkillTrendAnalysis: 0.7}})

	assert.Equal(t, 1.0, m.SkillCompetency(SkillTrendAnalysis))
}

func TestApplyCompletionExponentialSmoothing(t *testing.T) {
	m := NewProgressMetrics(testLearner)

	m.ApplyCompletion(CompletionData{
		PatternPerformance:    floatPtr(1.0),
		ResearchQuality:       floatPtr(1.0),
		CommunityContribution: floatPtr(1.0),
	})

	// old*w + new*(1-w) from a zero start
	assert.InDelta(t, 0.10, m.PatternRecognitionScore.Float64(), 1e-9)
	assert.InDelta(t, 0.15, m.ResearchEngagementScore.Float64(), 1e-9)
	assert.InDelta(t, 0.10, m.CommunityContributionScore.Float64(), 1e-9)

	m.ApplyCompletion(CompletionData{PatternPerformance: floatPtr(1.0)})
	assert.InDelta(t, 0.19, m.PatternRecognitionScore.Float64(), 1e-9)
}

func TestApplyCompletionSessionTimeAdditive(t *testing.T) {
	m := NewProgressMetrics(testLearner)

	m.ApplyCompletion(CompletionData{SessionDuration: 120})
	m.ApplyCompletion(CompletionData{SessionDuration: 300})

	assert.Equal(t, 420.0, m.TotalSessionTime)
}

func TestApplyCompletionStreakRules(t *testing.T) {
	m := NewProgressMetrics(testLearner)

	m.ApplyCompletion(CompletionData{OccurredAt: timeutil.Date(2026, 5, 1)})
	assert.Equal(t, 1, m.Streak.Current)

	// D+1 increments
	m.ApplyCompletion(CompletionData{OccurredAt: timeutil.Date(2026, 5, 2)})
	assert.Equal(t, 2, m.Streak.Current)

	// D+2 resets to 1
	update := m.ApplyCompletion(CompletionData{OccurredAt: timeutil.Date(2026, 5, 4)})
	assert.True(t, update.Broken)
	assert.Equal(t, 1, m.Streak.Current)
	assert.Equal(t, 2, m.Streak.Best)
}

func TestAddProgressionPointsMonotonic(t *testing.T) {
	m := NewProgressMetrics(testLearner)

	m.AddProgressionPoints(50)
	m.AddProgressionPoints(-30) // ignored
	m.AddProgressionPoints(25)

	assert.Equal(t, 75.0, m.StageProgressionPoints.Float64())
}
