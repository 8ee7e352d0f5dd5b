// Package stage contains the mastery-stage model: the four ordered stages,
// their static profiles, the assessment engine that classifies a session's
// event log into a stage, and the content-adaptation directory derived from
// that classification. Everything here is pure computation over an event
// log; nothing is persisted.
package stage

import (
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// Stage is one of four ordered learning-maturity levels.
type Stage string

const (
	StageGuidedDiscovery     Stage = "guided_discovery"
	StageAssistedAnalysis    Stage = "assisted_analysis"
	StageIndependentThinking Stage = "independent_thinking"
	StageAnalyticalMastery   Stage = "analytical_mastery"
)

// stageOrder fixes the progression order. Index doubles as the ordinal.
var stageOrder = []Stage{
	StageGuidedDiscovery,
	StageAssistedAnalysis,
	StageIndependentThinking,
	StageAnalyticalMastery,
}

// AllStages returns the stages in progression order.
func AllStages() []Stage {
	return stageOrder
}

// IsValid checks if the stage is one of the four known stages.
func (s Stage) IsValid() bool {
	switch s {
	case StageGuidedDiscovery, StageAssistedAnalysis, StageIndependentThinking, StageAnalyticalMastery:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// Ordinal returns the stage's position in the progression (0-based).
// Unknown stages map to the lowest stage.
func (s Stage) Ordinal() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return 0
}

// Next returns the following stage. ok is false at the terminal stage.
func (s Stage) Next() (Stage, bool) {
	idx := s.Ordinal()
	if idx >= len(stageOrder)-1 {
		return s, false
	}
	return stageOrder[idx+1], true
}

// IsTerminal reports whether this is the last stage of the progression.
func (s Stage) IsTerminal() bool {
	return s.Ordinal() == len(stageOrder)-1
}

// After reports whether s comes after other in the progression.
func (s Stage) After(other Stage) bool {
	return s.Ordinal() > other.Ordinal()
}

// DisplayName returns a human-readable stage name for UI surfaces.
func (s Stage) DisplayName() string {
	switch s {
	case StageGuidedDiscovery:
		return "Guided Discovery"
	case StageAssistedAnalysis:
		return "Assisted Analysis"
	case StageIndependentThinking:
		return "Independent Thinking"
	case StageAnalyticalMastery:
		return "Analytical Mastery"
	default:
		return "Guided Discovery"
	}
}

// ParseStage parses a string into a Stage.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.IsValid() {
		return "", shared.ErrUnknownStage
	}
	return st, nil
}
