package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentForMatchedStage(t *testing.T) {
	assessment := AssessmentResult{
		CurrentStage:        StageIndependentThinking,
		ConfidenceScore:     0.8,
		ProgressWithinStage: 0.4,
		Recommendations:     []string{"a", "b"},
	}

	config := ContentFor(assessment, AnalysisContext{CompanyName: "Acme Corp"})

	assert.Equal(t, ComplexityAdvanced, config.ContentComplexity)
	assert.Equal(t, StageIndependentThinking, config.StageInfo.Stage)
	assert.Equal(t, "Independent Thinking", config.StageInfo.DisplayName)
	assert.Equal(t, false, config.UIAdaptations["show_tooltips"])
	assert.Equal(t, []string{"a", "b"}, config.Recommendations)

	assert.NotEmpty(t, config.LearningPrompts)
	for _, p := range config.LearningPrompts {
		assert.Contains(t, p, "Acme Corp")
	}
}

func TestContentForUnknownStageDefaultsToLowest(t *testing.T) {
	assessment := AssessmentResult{CurrentStage: Stage("enlightened")}

	config := ContentFor(assessment, AnalysisContext{})

	assert.Equal(t, ComplexityBasic, config.ContentComplexity)
	assert.Equal(t, StageGuidedDiscovery, config.StageInfo.Stage)
	assert.Equal(t, true, config.UIAdaptations["show_tooltips"])
	for _, p := range config.LearningPrompts {
		assert.Contains(t, p, "this company")
	}
}

func TestContentForCopiesAdaptations(t *testing.T) {
	assessment := AssessmentResult{CurrentStage: StageGuidedDiscovery}

	config := ContentFor(assessment, AnalysisContext{})
	config.UIAdaptations["show_tooltips"] = false

	again := ContentFor(assessment, AnalysisContext{})
	assert.Equal(t, true, again.UIAdaptations["show_tooltips"])
}

func TestProgressDataGating(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		count      int
		wantShown  bool
	}{
		{"confident with volume", 0.75, 20, true},
		{"low confidence", 0.5, 20, false},
		{"boundary confidence", 0.6, 20, false},
		{"too few events", 0.75, 9, false},
		{"boundary events", 0.75, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessment := AssessmentResult{
				CurrentStage:        StageAssistedAnalysis,
				ConfidenceScore:     tt.confidence,
				ProgressWithinStage: 0.42,
				NextStageReadiness:  0.25,
				InteractionCount:    tt.count,
				Recommendations:     []string{"a", "b", "c", "d"},
			}

			data, ok := ProgressDataFrom(assessment)
			assert.Equal(t, tt.wantShown, ok)
			if !tt.wantShown {
				assert.Nil(t, data)
				return
			}
			assert.Equal(t, 42, data.ProgressPercent)
			assert.Equal(t, 25, data.ReadinessPercent)
			assert.Len(t, data.TopRecommendations, 3)
		})
	}
}
