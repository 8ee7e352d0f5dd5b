// Package behavior contains the behavioral event model: the interaction
// vocabulary, the immutable event record, and the session-scoped event log
// with its rolling retention window. This package is pure domain logic with
// no external dependencies.
package behavior

import (
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// InteractionType is the fixed vocabulary of tracked interactions.
type InteractionType string

const (
	InteractionTooltipUsage          InteractionType = "tooltip_usage"
	InteractionWarningEngagement     InteractionType = "warning_engagement"
	InteractionResearchGuideAccess   InteractionType = "research_guide_access"
	InteractionCommunityContribution InteractionType = "community_contribution"
	InteractionAnalysisCompletion    InteractionType = "analysis_completion"
	InteractionCrossStockComparison  InteractionType = "cross_stock_comparison"
	InteractionPredictionAttempt     InteractionType = "prediction_attempt"
)

// AllInteractionTypes lists the full vocabulary, in no particular order.
var AllInteractionTypes = []InteractionType{
	InteractionTooltipUsage,
	InteractionWarningEngagement,
	InteractionResearchGuideAccess,
	InteractionCommunityContribution,
	InteractionAnalysisCompletion,
	InteractionCrossStockComparison,
	InteractionPredictionAttempt,
}

// IsValid checks if the interaction type belongs to the vocabulary.
func (t InteractionType) IsValid() bool {
	switch t {
	case InteractionTooltipUsage,
		InteractionWarningEngagement,
		InteractionResearchGuideAccess,
		InteractionCommunityContribution,
		InteractionAnalysisCompletion,
		InteractionCrossStockComparison,
		InteractionPredictionAttempt:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t InteractionType) String() string {
	return string(t)
}

// ParseInteractionType parses a string into an InteractionType.
func ParseInteractionType(s string) (InteractionType, error) {
	t := InteractionType(s)
	if !t.IsValid() {
		return "", shared.ErrUnknownInteractionType
	}
	return t, nil
}

// BehavioralEvent is one recorded interaction. Immutable once appended to
// the event log; destroyed only by rolling-window eviction.
type BehavioralEvent struct {
	Type            InteractionType        `json:"interaction_type"`
	Timestamp       time.Time              `json:"timestamp"`
	DurationSeconds float64                `json:"duration_seconds"`
	Context         map[string]interface{} `json:"context,omitempty"`
	SessionID       shared.SessionID       `json:"session_id"`
}

// NewBehavioralEvent creates a behavioral event stamped at the given time.
func NewBehavioralEvent(sessionID shared.SessionID, t InteractionType, at time.Time, durationSeconds float64, context map[string]interface{}) BehavioralEvent {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return BehavioralEvent{
		Type:            t,
		Timestamp:       at,
		DurationSeconds: durationSeconds,
		Context:         context,
		SessionID:       sessionID,
	}
}

// IsValid reports whether the event is well-formed. Malformed events (missing
// type or timestamp) are skipped by scoring, never surfaced as errors.
func (e BehavioralEvent) IsValid() bool {
	return e.Type.IsValid() && !e.Timestamp.IsZero()
}

// UnixSeconds returns the event timestamp as float unix seconds, the shape
// producers and exports use on the wire.
func (e BehavioralEvent) UnixSeconds() float64 {
	return float64(e.Timestamp.UnixNano()) / float64(time.Second)
}
