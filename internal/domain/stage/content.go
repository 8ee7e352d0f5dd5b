package stage

import (
	"fmt"
	"math"
)

// AnalysisContext carries optional page context into content adaptation.
type AnalysisContext struct {
	// CompanyName, when set, is interpolated into learning prompts.
	CompanyName string
}

// StageInfo is the slice of the assessment surfaced alongside adapted
// content.
type StageInfo struct {
	Stage       Stage   `json:"stage"`
	DisplayName string  `json:"display_name"`
	Confidence  float64 `json:"confidence"`
	Progress    float64 `json:"progress"`
}

// ContentConfig is the set of UI directives derived from an assessment.
// Consumed by page rendering; this package only assembles it.
type ContentConfig struct {
	UIAdaptations     map[string]interface{} `json:"ui_adaptations"`
	ContentComplexity ContentComplexity      `json:"content_complexity"`
	StageInfo         StageInfo              `json:"stage_info"`
	Recommendations   []string               `json:"recommendations"`
	LearningPrompts   []string               `json:"learning_prompts"`
}

// ContentFor merges the matched stage profile's static UI adaptations with
// per-stage learning prompts. Pure lookup: no side effects, and an
// unrecognized stage falls back to the lowest stage's template.
func ContentFor(assessment AssessmentResult, analysisCtx AnalysisContext) ContentConfig {
	current := assessment.CurrentStage
	if !current.IsValid() {
		current = StageGuidedDiscovery
	}
	profile := ProfileFor(current)

	// Copy the static map so callers cannot mutate the profile table.
	adaptations := make(map[string]interface{}, len(profile.UIAdaptations))
	for k, v := range profile.UIAdaptations {
		adaptations[k] = v
	}

	return ContentConfig{
		UIAdaptations:     adaptations,
		ContentComplexity: profile.ContentComplexity,
		StageInfo: StageInfo{
			Stage:       current,
			DisplayName: current.DisplayName(),
			Confidence:  assessment.ConfidenceScore,
			Progress:    assessment.ProgressWithinStage,
		},
		Recommendations: assessment.Recommendations,
		LearningPrompts: learningPrompts(current, analysisCtx),
	}
}

// learningPrompts renders the per-stage prompt templates, interpolating the
// company name when the page provided one.
func learningPrompts(current Stage, analysisCtx AnalysisContext) []string {
	subject := analysisCtx.CompanyName
	if subject == "" {
		subject = "this company"
	}

	switch current {
	case StageGuidedDiscovery:
		return []string{
			fmt.Sprintf("What does %s actually sell, and who buys it?", subject),
			fmt.Sprintf("Find one warning signal on %s's page and read its explanation", subject),
		}
	case StageAssistedAnalysis:
		return []string{
			fmt.Sprintf("How has %s's revenue trended over the last three years?", subject),
			fmt.Sprintf("Which two ratios matter most for %s's industry, and why?", subject),
		}
	case StageIndependentThinking:
		return []string{
			fmt.Sprintf("What would have to be true for %s to be undervalued?", subject),
			fmt.Sprintf("Compare %s against its closest competitor without opening the hints", subject),
		}
	case StageAnalyticalMastery:
		return []string{
			fmt.Sprintf("Write the bear case for %s that its fans ignore", subject),
			fmt.Sprintf("Which footnote in %s's latest filing changes the picture?", subject),
		}
	default:
		return learningPrompts(StageGuidedDiscovery, analysisCtx)
	}
}

// ProgressData is the rounded, display-ready progress summary. Only
// produced when the assessment is trustworthy; callers treat a nil result
// as "don't show progress UI yet."
type ProgressData struct {
	Stage              Stage    `json:"stage"`
	StageDisplayName   string   `json:"stage_display_name"`
	ProgressPercent    int      `json:"progress_percent"`
	ReadinessPercent   int      `json:"readiness_percent"`
	ConfidencePercent  int      `json:"confidence_percent"`
	TopRecommendations []string `json:"top_recommendations"`
}

// Gates for showing progress UI.
const (
	progressMinConfidence   = 0.6
	progressMinInteractions = 10
)

// ProgressDataFrom converts an assessment into display data. ok is false
// when confidence or interaction volume is below the display gates.
func ProgressDataFrom(assessment AssessmentResult) (*ProgressData, bool) {
	if assessment.ConfidenceScore <= progressMinConfidence ||
		assessment.InteractionCount < progressMinInteractions {
		return nil, false
	}

	top := assessment.Recommendations
	if len(top) > 3 {
		top = top[:3]
	}

	return &ProgressData{
		Stage:              assessment.CurrentStage,
		StageDisplayName:   assessment.CurrentStage.DisplayName(),
		ProgressPercent:    roundPercent(assessment.ProgressWithinStage),
		ReadinessPercent:   roundPercent(assessment.NextStageReadiness),
		ConfidencePercent:  roundPercent(assessment.ConfidenceScore),
		TopRecommendations: top,
	}, true
}

func roundPercent(v float64) int {
	return int(math.Round(v * 100))
}
