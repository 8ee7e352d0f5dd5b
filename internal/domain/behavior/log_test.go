package behavior

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

const testSession = shared.SessionID("5f0c1de2-9a34-4c1b-8f5e-aa01b2c3d4e5")

func TestEventLogAppendKeepsOrder(t *testing.T) {
	log := NewEventLog(testSession)
	now := time.Now()

	log.Append(NewBehavioralEvent(testSession, InteractionTooltipUsage, now.Add(-2*time.Minute), 3, nil), now)
	log.Append(NewBehavioralEvent(testSession, InteractionAnalysisCompletion, now.Add(-time.Minute), 120, nil), now)
	log.Append(NewBehavioralEvent(testSession, InteractionPredictionAttempt, now, 45, nil), now)

	events := log.Events()
	assert.Len(t, events, 3)
	assert.Equal(t, InteractionTooltipUsage, events[0].Type)
	assert.Equal(t, InteractionAnalysisCompletion, events[1].Type)
	assert.Equal(t, InteractionPredictionAttempt, events[2].Type)
}

func TestEventLogRollingWindowEviction(t *testing.T) {
	log := NewEventLog(testSession)
	now := time.Now()

	stale := NewBehavioralEvent(testSession, InteractionTooltipUsage, now.Add(-8*24*time.Hour), 3, nil)
	fresh := NewBehavioralEvent(testSession, InteractionAnalysisCompletion, now, 60, nil)

	log.Append(stale, now)
	log.Append(fresh, now)

	assert.Equal(t, 1, log.Len())
	assert.Equal(t, InteractionAnalysisCompletion, log.Events()[0].Type)
}

func TestEventLogEvictionAppliedOnEveryAppend(t *testing.T) {
	log := NewEventLog(testSession)
	base := time.Now().Add(-10 * 24 * time.Hour)

	// Events appended over ten days; each append evicts relative to its
	// own moment, so only the last week survives.
	for day := 0; day < 10; day++ {
		at := base.Add(time.Duration(day) * 24 * time.Hour)
		log.Append(NewBehavioralEvent(testSession, InteractionWarningEngagement, at, 5, nil), at)
	}

	assert.Equal(t, 8, log.Len()) // day 2..9 inclusive fit the 7-day window
	for _, e := range log.Events() {
		assert.True(t, timeWithin(e.Timestamp, base.Add(9*24*time.Hour), DefaultRetentionWindow))
	}
}

func timeWithin(ts, now time.Time, window time.Duration) bool {
	return !ts.Before(now.Add(-window))
}

func TestEventLogSkipsMalformedEvents(t *testing.T) {
	log := NewEventLog(testSession)
	now := time.Now()

	log.Append(NewBehavioralEvent(testSession, InteractionTooltipUsage, now, 3, nil), now)
	log.Append(BehavioralEvent{Type: "", Timestamp: now, SessionID: testSession}, now)
	// A zero timestamp is older than any window cutoff, so the append
	// evicts it immediately; scoring never sees it either way.
	log.Append(BehavioralEvent{Type: InteractionAnalysisCompletion, SessionID: testSession}, now)

	assert.Equal(t, 2, log.Len())
	assert.Len(t, log.ValidEvents(), 1)

	counts := log.CountsByType()
	assert.Equal(t, 1, counts[InteractionTooltipUsage])
	assert.Equal(t, 0, counts[InteractionAnalysisCompletion])
}

func TestInteractionTypeVocabulary(t *testing.T) {
	for _, it := range AllInteractionTypes {
		parsed, err := ParseInteractionType(it.String())
		assert.NoError(t, err)
		assert.Equal(t, it, parsed)
	}

	_, err := ParseInteractionType("mouse_wiggle")
	assert.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestNewBehavioralEventNegativeDurationFloored(t *testing.T) {
	e := NewBehavioralEvent(testSession, InteractionTooltipUsage, time.Now(), -5, nil)
	assert.Equal(t, 0.0, e.DurationSeconds)
}
