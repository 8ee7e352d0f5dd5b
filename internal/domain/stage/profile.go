package stage

// ContentComplexity grades the educational material served at a stage.
type ContentComplexity string

const (
	ComplexityBasic        ContentComplexity = "basic"
	ComplexityIntermediate ContentComplexity = "intermediate"
	ComplexityAdvanced     ContentComplexity = "advanced"
	ComplexityExpert       ContentComplexity = "expert"
)

// Thresholds holds the four behavioral thresholds of a stage profile.
// TooltipDependency is an inverse signal: a learner matches when their score
// is below it. The other three match when the score is above.
type Thresholds struct {
	TooltipDependency    float64
	AnalysisDepth        float64
	PatternRecognition   float64
	TeachingContribution float64
}

// Profile is the static configuration of one stage. Loaded once at process
// start, never mutated.
type Profile struct {
	Stage             Stage
	DurationWeeksMin  int
	DurationWeeksMax  int
	Thresholds        Thresholds
	UIAdaptations     map[string]interface{}
	ContentComplexity ContentComplexity
}

// profiles is the static stage-profile table. The classification cascade in
// engine.go uses subsets of these thresholds; next-stage readiness uses all
// four.
var profiles = map[Stage]Profile{
	StageGuidedDiscovery: {
		Stage:            StageGuidedDiscovery,
		DurationWeeksMin: 2,
		DurationWeeksMax: 8,
		Thresholds: Thresholds{
			TooltipDependency:    1.0, // any dependency level matches the entry stage
			AnalysisDepth:        0.0,
			PatternRecognition:   0.0,
			TeachingContribution: 0.0,
		},
		UIAdaptations: map[string]interface{}{
			"show_tooltips":       true,
			"simplified_metrics":  true,
			"warning_prominence":  "high",
			"glossary_expanded":   true,
			"guided_walkthroughs": true,
		},
		ContentComplexity: ComplexityBasic,
	},
	StageAssistedAnalysis: {
		Stage:            StageAssistedAnalysis,
		DurationWeeksMin: 4,
		DurationWeeksMax: 12,
		Thresholds: Thresholds{
			TooltipDependency:    0.65,
			AnalysisDepth:        0.35,
			PatternRecognition:   0.15,
			TeachingContribution: 0.05,
		},
		UIAdaptations: map[string]interface{}{
			"show_tooltips":      true,
			"simplified_metrics": false,
			"warning_prominence": "medium",
			"analysis_checklist": true,
			"ratio_explanations": true,
		},
		ContentComplexity: ComplexityIntermediate,
	},
	StageIndependentThinking: {
		Stage:            StageIndependentThinking,
		DurationWeeksMin: 8,
		DurationWeeksMax: 24,
		Thresholds: Thresholds{
			TooltipDependency:    0.35,
			AnalysisDepth:        0.65,
			PatternRecognition:   0.50,
			TeachingContribution: 0.25,
		},
		UIAdaptations: map[string]interface{}{
			"show_tooltips":      false,
			"warning_prominence": "low",
			"advanced_ratios":    true,
			"peer_comparisons":   true,
			"prediction_journal": true,
		},
		ContentComplexity: ComplexityAdvanced,
	},
	StageAnalyticalMastery: {
		Stage:            StageAnalyticalMastery,
		DurationWeeksMin: 12,
		DurationWeeksMax: 52,
		Thresholds: Thresholds{
			TooltipDependency:    0.15,
			AnalysisDepth:        0.85,
			PatternRecognition:   0.75,
			TeachingContribution: 0.65,
		},
		UIAdaptations: map[string]interface{}{
			"show_tooltips":      false,
			"warning_prominence": "minimal",
			"raw_data_access":    true,
			"mentor_tools":       true,
			"community_spotlight": true,
		},
		ContentComplexity: ComplexityExpert,
	},
}

// ProfileFor returns the static profile of a stage. Unknown stages fall back
// to the lowest stage's profile.
func ProfileFor(s Stage) Profile {
	if p, ok := profiles[s]; ok {
		return p
	}
	return profiles[StageGuidedDiscovery]
}

// Profiles returns the full static table, keyed by stage.
func Profiles() map[Stage]Profile {
	return profiles
}
