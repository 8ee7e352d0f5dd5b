package stage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

const testSession = shared.SessionID("7a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d")

// buildLog creates an event log with the given number of events per type,
// all stamped within the retention window.
func buildLog(counts map[behavior.InteractionType]int) *behavior.EventLog {
	log := behavior.NewEventLog(testSession)
	now := time.Now()
	i := 0
	for it, n := range counts {
		for j := 0; j < n; j++ {
			at := now.Add(-time.Duration(i) * time.Minute)
			log.Append(behavior.NewBehavioralEvent(testSession, it, at, 3, nil), now)
			i++
		}
	}
	return log
}

func TestAssessColdStartDeterminism(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())

	cases := []*behavior.EventLog{
		nil,
		behavior.NewEventLog(testSession),
		buildLog(map[behavior.InteractionType]int{behavior.InteractionTooltipUsage: 4}),
	}

	for _, log := range cases {
		result := engine.Assess(log)
		assert.Equal(t, StageGuidedDiscovery, result.CurrentStage)
		assert.Equal(t, 0.3, result.ConfidenceScore)
		assert.NotEmpty(t, result.Recommendations)
		assert.Equal(t, 0.0, result.ProgressWithinStage)
	}
}

func TestAssessColdStartIgnoresMalformedEvents(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	log := behavior.NewEventLog(testSession)
	now := time.Now()

	// 4 valid + 3 malformed: still below the assessment floor.
	for i := 0; i < 4; i++ {
		log.Append(behavior.NewBehavioralEvent(testSession, behavior.InteractionTooltipUsage, now, 2, nil), now)
	}
	for i := 0; i < 3; i++ {
		log.Append(behavior.BehavioralEvent{SessionID: testSession, Timestamp: now}, now)
	}

	result := engine.Assess(log)
	assert.Equal(t, StageGuidedDiscovery, result.CurrentStage)
	assert.Equal(t, 0.3, result.ConfidenceScore)
	assert.Equal(t, 4, result.InteractionCount)
}

func TestAssessGuidedDiscoveryScenario(t *testing.T) {
	// 10 tooltip usages + 3 completed analyses: a clearly novice pattern.
	engine := NewEngine(DefaultEngineConfig())
	log := buildLog(map[behavior.InteractionType]int{
		behavior.InteractionTooltipUsage:       10,
		behavior.InteractionAnalysisCompletion: 3,
	})

	result := engine.Assess(log)
	assert.Equal(t, StageGuidedDiscovery, result.CurrentStage)
	assert.Greater(t, result.BehavioralScores.TooltipDependency, 0.5)
	assert.Equal(t, 13, result.InteractionCount)
}

func TestAssessCascadeClassification(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())

	tests := []struct {
		name   string
		counts map[behavior.InteractionType]int
		want   Stage
	}{
		{
			name: "assisted analysis",
			counts: map[behavior.InteractionType]int{
				behavior.InteractionTooltipUsage:        2,
				behavior.InteractionWarningEngagement:   2,
				behavior.InteractionAnalysisCompletion:  2,
				behavior.InteractionCrossStockComparison: 2,
			},
			want: StageAssistedAnalysis,
		},
		{
			name: "independent thinking",
			counts: map[behavior.InteractionType]int{
				behavior.InteractionTooltipUsage:        2,
				behavior.InteractionAnalysisCompletion:  8,
				behavior.InteractionCrossStockComparison: 4,
			},
			want: StageIndependentThinking,
		},
		{
			name: "analytical mastery",
			counts: map[behavior.InteractionType]int{
				behavior.InteractionAnalysisCompletion:   20,
				behavior.InteractionCrossStockComparison: 12,
				behavior.InteractionCommunityContribution: 8,
			},
			want: StageAnalyticalMastery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Assess(buildLog(tt.counts))
			assert.Equal(t, tt.want, result.CurrentStage)
		})
	}
}

func TestAssessScoresAlwaysClamped(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())

	adversarial := []map[behavior.InteractionType]int{
		{behavior.InteractionTooltipUsage: 5000},
		{behavior.InteractionCommunityContribution: 3000},
		{behavior.InteractionPredictionAttempt: 2500, behavior.InteractionTooltipUsage: 2500},
		{
			behavior.InteractionTooltipUsage:          1000,
			behavior.InteractionWarningEngagement:     1000,
			behavior.InteractionResearchGuideAccess:   1000,
			behavior.InteractionCommunityContribution: 1000,
			behavior.InteractionAnalysisCompletion:    1000,
			behavior.InteractionCrossStockComparison:  1000,
			behavior.InteractionPredictionAttempt:     1000,
		},
	}

	for _, counts := range adversarial {
		result := engine.Assess(buildLog(counts))
		for name, score := range result.BehavioralScores.AsMap() {
			assert.GreaterOrEqual(t, score, 0.0, name)
			assert.LessOrEqual(t, score, 1.0, name)
		}
		assert.GreaterOrEqual(t, result.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, result.ConfidenceScore, 1.0)
		assert.GreaterOrEqual(t, result.ProgressWithinStage, 0.0)
		assert.LessOrEqual(t, result.ProgressWithinStage, 1.0)
	}
}

func TestNextStageReadinessQuantized(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	log := buildLog(map[behavior.InteractionType]int{
		behavior.InteractionTooltipUsage:        2,
		behavior.InteractionWarningEngagement:   2,
		behavior.InteractionAnalysisCompletion:  2,
		behavior.InteractionCrossStockComparison: 2,
	})

	result := engine.Assess(log)
	assert.Equal(t, StageAssistedAnalysis, result.CurrentStage)
	assert.Contains(t, []float64{0, 0.25, 0.5, 0.75, 1.0}, result.NextStageReadiness)
	// analysis and pattern already clear the independent thresholds;
	// tooltip dependency and teaching do not.
	assert.Equal(t, 0.5, result.NextStageReadiness)
}

func TestTerminalStageReadinessIsMeanOfAdvancedScores(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	log := buildLog(map[behavior.InteractionType]int{
		behavior.InteractionAnalysisCompletion:   20,
		behavior.InteractionCrossStockComparison: 12,
		behavior.InteractionCommunityContribution: 8,
	})

	result := engine.Assess(log)
	assert.Equal(t, StageAnalyticalMastery, result.CurrentStage)

	s := result.BehavioralScores
	want := (s.AnalysisDepth + s.PatternRecognition + s.TeachingContribution) / 3
	assert.InDelta(t, want, result.NextStageReadiness, 1e-9)
}

func TestStageOrdering(t *testing.T) {
	assert.True(t, StageAnalyticalMastery.After(StageGuidedDiscovery))
	assert.True(t, StageAnalyticalMastery.IsTerminal())

	next, ok := StageGuidedDiscovery.Next()
	assert.True(t, ok)
	assert.Equal(t, StageAssistedAnalysis, next)

	_, ok = StageAnalyticalMastery.Next()
	assert.False(t, ok)
}
