package stage

import (
	"math"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// BehavioralScores are the four derived [0,1] metrics summarizing one
// dimension of interaction intensity each, relative to total activity.
type BehavioralScores struct {
	TooltipDependency    float64 `json:"tooltip_dependency"`
	AnalysisDepth        float64 `json:"analysis_depth"`
	PatternRecognition   float64 `json:"pattern_recognition"`
	TeachingContribution float64 `json:"teaching_contribution"`
}

// AsMap returns the scores keyed by their canonical names.
func (s BehavioralScores) AsMap() map[string]float64 {
	return map[string]float64{
		"tooltip_dependency":    s.TooltipDependency,
		"analysis_depth":        s.AnalysisDepth,
		"pattern_recognition":   s.PatternRecognition,
		"teaching_contribution": s.TeachingContribution,
	}
}

// AssessmentResult is the outcome of assessing one session's event log.
// Derived entirely from the current log: recomputed on demand, never
// persisted, so the reported stage can move in either direction between
// calls when scores are borderline.
type AssessmentResult struct {
	CurrentStage        Stage            `json:"current_stage"`
	ConfidenceScore     float64          `json:"confidence_score"`
	ProgressWithinStage float64          `json:"progress_within_stage"`
	NextStageReadiness  float64          `json:"next_stage_readiness"`
	BehavioralScores    BehavioralScores `json:"behavioral_scores"`
	Recommendations     []string         `json:"recommendations"`
	InteractionCount    int              `json:"interaction_count"`
	AssessedAt          time.Time        `json:"assessed_at"`
}

// EngineConfig holds tunables of the assessment engine.
type EngineConfig struct {
	// MinInteractionsForAssessment is the cold-start floor: fewer valid
	// events than this short-circuits to the entry stage.
	MinInteractionsForAssessment int

	// ColdStartConfidence is the fixed confidence reported before the
	// floor is reached.
	ColdStartConfidence float64

	// CountBonusScale and CountBonusCap shape the interaction-count bonus
	// added to confidence: min(count/scale, cap).
	CountBonusScale float64
	CountBonusCap   float64
}

// DefaultEngineConfig returns the standard engine tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinInteractionsForAssessment: 5,
		ColdStartConfidence:          0.3,
		CountBonusScale:              50,
		CountBonusCap:                0.2,
	}
}

// Engine classifies event logs into stages. Stateless and safe for
// concurrent use.
type Engine struct {
	config EngineConfig
}

// NewEngine creates an assessment engine with the given config.
func NewEngine(config EngineConfig) *Engine {
	if config.MinInteractionsForAssessment <= 0 {
		config.MinInteractionsForAssessment = DefaultEngineConfig().MinInteractionsForAssessment
	}
	if config.ColdStartConfidence <= 0 {
		config.ColdStartConfidence = DefaultEngineConfig().ColdStartConfidence
	}
	if config.CountBonusScale <= 0 {
		config.CountBonusScale = DefaultEngineConfig().CountBonusScale
	}
	if config.CountBonusCap <= 0 {
		config.CountBonusCap = DefaultEngineConfig().CountBonusCap
	}
	return &Engine{config: config}
}

// Assess computes a fresh assessment from the session's event log. Never
// fails: malformed events are skipped and the worst case is the cold-start
// default.
func (e *Engine) Assess(log *behavior.EventLog) AssessmentResult {
	now := time.Now()

	if log == nil {
		return e.coldStartResult(0, now)
	}

	valid := log.ValidEvents()
	if len(valid) < e.config.MinInteractionsForAssessment {
		return e.coldStartResult(len(valid), now)
	}

	scores := computeScores(log.CountsByType(), len(valid))
	current := classify(scores)

	return AssessmentResult{
		CurrentStage:        current,
		ConfidenceScore:     e.confidence(current, scores, len(valid)),
		ProgressWithinStage: progressWithinStage(current, scores),
		NextStageReadiness:  nextStageReadiness(current, scores),
		BehavioralScores:    scores,
		Recommendations:     recommendationsFor(current, scores),
		InteractionCount:    len(valid),
		AssessedAt:          now,
	}
}

// coldStartResult is the defined default for brand-new sessions.
func (e *Engine) coldStartResult(interactionCount int, now time.Time) AssessmentResult {
	return AssessmentResult{
		CurrentStage:        StageGuidedDiscovery,
		ConfidenceScore:     e.config.ColdStartConfidence,
		ProgressWithinStage: 0,
		NextStageReadiness:  0,
		BehavioralScores:    BehavioralScores{},
		Recommendations:     coldStartRecommendations(),
		InteractionCount:    interactionCount,
		AssessedAt:          now,
	}
}

// computeScores derives the four behavioral scores. Each is a weighted
// interaction-type ratio against a fraction of total valid interactions,
// clamped to [0,1].
func computeScores(counts map[behavior.InteractionType]int, total int) BehavioralScores {
	if total <= 0 {
		return BehavioralScores{}
	}
	n := float64(total)

	tooltip := float64(counts[behavior.InteractionTooltipUsage]) / (0.5 * n)
	analysis := float64(counts[behavior.InteractionWarningEngagement]+
		counts[behavior.InteractionResearchGuideAccess]+
		counts[behavior.InteractionAnalysisCompletion]) / (0.4 * n)
	pattern := float64(counts[behavior.InteractionCrossStockComparison]+
		counts[behavior.InteractionPredictionAttempt]) / (0.3 * n)
	teaching := float64(counts[behavior.InteractionCommunityContribution]) / (0.15 * n)

	return BehavioralScores{
		TooltipDependency:    shared.Clamp01(tooltip),
		AnalysisDepth:        shared.Clamp01(analysis),
		PatternRecognition:   shared.Clamp01(pattern),
		TeachingContribution: shared.Clamp01(teaching),
	}
}

// classify runs the ordered rule cascade, highest stage first.
func classify(s BehavioralScores) Stage {
	switch {
	case s.TooltipDependency < 0.15 &&
		s.AnalysisDepth > 0.85 &&
		s.PatternRecognition > 0.75 &&
		s.TeachingContribution > 0.65:
		return StageAnalyticalMastery

	case s.TooltipDependency < 0.35 &&
		s.AnalysisDepth > 0.65 &&
		s.PatternRecognition > 0.5:
		return StageIndependentThinking

	case s.TooltipDependency < 0.65 &&
		s.AnalysisDepth > 0.35:
		return StageAssistedAnalysis

	default:
		return StageGuidedDiscovery
	}
}

// margins returns the signed per-dimension margins against a profile's
// thresholds. Positive means the dimension satisfies the stage: tooltip
// dependency is inverted (below threshold is good).
func margins(thr Thresholds, s BehavioralScores) [4]float64 {
	return [4]float64{
		thr.TooltipDependency - s.TooltipDependency,
		s.AnalysisDepth - thr.AnalysisDepth,
		s.PatternRecognition - thr.PatternRecognition,
		s.TeachingContribution - thr.TeachingContribution,
	}
}

// confidence reflects how cleanly the scores sit inside the matched stage's
// profile, plus a bonus for having more interactions to judge from.
func (e *Engine) confidence(current Stage, s BehavioralScores, count int) float64 {
	var match float64
	for _, m := range margins(ProfileFor(current).Thresholds, s) {
		match += shared.Clamp01(0.5 + m)
	}
	match /= 4

	bonus := math.Min(float64(count)/e.config.CountBonusScale, e.config.CountBonusCap)
	return shared.Clamp01(match*0.8 + bonus)
}

// progressWithinStage measures how far the scores exceed the matched
// stage's thresholds, scaled x2 and clamped.
func progressWithinStage(current Stage, s BehavioralScores) float64 {
	var excess float64
	for _, m := range margins(ProfileFor(current).Thresholds, s) {
		if m > 0 {
			excess += m
		}
	}
	return shared.Clamp01(excess / 4 * 2)
}

// nextStageReadiness is the fraction of the next stage's four thresholds
// already satisfied; the terminal stage reports the mean of its own three
// advanced scores instead.
func nextStageReadiness(current Stage, s BehavioralScores) float64 {
	next, ok := current.Next()
	if !ok {
		return shared.Clamp01((s.AnalysisDepth + s.PatternRecognition + s.TeachingContribution) / 3)
	}

	thr := ProfileFor(next).Thresholds
	satisfied := 0
	if s.TooltipDependency < thr.TooltipDependency {
		satisfied++
	}
	if s.AnalysisDepth > thr.AnalysisDepth {
		satisfied++
	}
	if s.PatternRecognition > thr.PatternRecognition {
		satisfied++
	}
	if s.TeachingContribution > thr.TeachingContribution {
		satisfied++
	}
	return float64(satisfied) / 4
}

// coldStartRecommendations is the canned set served before enough events
// exist to assess.
func coldStartRecommendations() []string {
	return []string{
		"Hover over highlighted terms to see plain-language explanations",
		"Complete your first guided company analysis",
		"Read the beginner research guide before comparing stocks",
	}
}

// recommendationsFor returns the stage's static tips plus one conditional
// tip when a specific score lags.
func recommendationsFor(current Stage, s BehavioralScores) []string {
	var recs []string

	switch current {
	case StageGuidedDiscovery:
		recs = []string{
			"Use the glossary tooltips while reading financial statements",
			"Follow the guided walkthrough for one company end to end",
			"Pay attention to the highlighted warning signals",
		}
		if s.AnalysisDepth < 0.2 {
			recs = append(recs, "Work through one full analysis checklist from top to bottom")
		}
	case StageAssistedAnalysis:
		recs = []string{
			"Compare two companies in the same sector side by side",
			"Use the ratio explanations to interpret what you compute",
			"Attempt a prediction before opening the expert view",
		}
		if s.PatternRecognition < 0.3 {
			recs = append(recs, "Try the cross-stock comparison exercises to build pattern intuition")
		}
	case StageIndependentThinking:
		recs = []string{
			"Run your analyses without tooltips and check yourself afterwards",
			"Keep a prediction journal and review your hit rate monthly",
			"Study sectors you have not analyzed before",
		}
		if s.TeachingContribution < 0.3 {
			recs = append(recs, "Share one of your analyses with the community for feedback")
		}
	case StageAnalyticalMastery:
		recs = []string{
			"Work from raw filings instead of pre-computed summaries",
			"Publish contrarian theses and defend them in the community",
			"Build your own screening criteria and track their performance",
		}
		if s.TeachingContribution < 0.7 {
			recs = append(recs, "Mentor a newer member by reviewing their analysis")
		}
	default:
		recs = coldStartRecommendations()
	}

	return recs
}
