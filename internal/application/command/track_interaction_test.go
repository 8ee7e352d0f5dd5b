package command

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/memory"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

const (
	testRawUser   = "user-42"
	testLearnerID = "8d4f9a2b1c3e5f708192a3b4c5d6e7f8"
	testSessionID = "6f1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9"
)

func quietLogger() *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = io.Discard
	return logger.New(opts)
}

// fixedAnonymizer maps every raw id to the same learner id.
type fixedAnonymizer struct{ id shared.LearnerID }

func (a fixedAnonymizer) Pseudonymize(string) shared.LearnerID { return a.id }

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// captureForwarder records forwarded completions.
type captureForwarder struct {
	completions []behavior.Completion
	err         error
}

func (f *captureForwarder) ProcessCompletion(_ context.Context, c behavior.Completion) error {
	f.completions = append(f.completions, c)
	return f.err
}

type trackFixture struct {
	handler   *TrackInteractionHandler
	eventLog  *memory.EventLogStore
	marks     *memory.StartMarkStore
	publisher *capturePublisher
	forwarder *captureForwarder
}

func newTrackFixture(t *testing.T) *trackFixture {
	t.Helper()

	f := &trackFixture{
		eventLog:  memory.NewEventLogStore(0),
		marks:     memory.NewStartMarkStore(),
		publisher: &capturePublisher{},
		forwarder: &captureForwarder{},
	}
	f.handler = NewTrackInteractionHandler(
		f.eventLog,
		f.marks,
		fixedAnonymizer{id: shared.LearnerID(testLearnerID)},
		f.forwarder,
		f.publisher,
		quietLogger(),
		DefaultTrackInteractionHandlerConfig(),
	)
	return f
}

func TestTrackInteractionStartEndPair(t *testing.T) {
	f := newTrackFixture(t)
	ctx := context.Background()
	// Relative to the wall clock: the event log evicts anything older than
	// the rolling window on append.
	start := time.Now().UTC().Add(-2 * time.Minute)

	_, err := f.handler.Handle(ctx, TrackInteractionCommand{
		RawUserID: testRawUser,
		SessionID: testSessionID,
		Type:      string(behavior.InteractionTooltipUsage),
		Phase:     PhaseStart,
		Timestamp: start,
	})
	require.NoError(t, err)

	result, err := f.handler.Handle(ctx, TrackInteractionCommand{
		RawUserID: testRawUser,
		SessionID: testSessionID,
		Type:      string(behavior.InteractionTooltipUsage),
		Phase:     PhaseEnd,
		Timestamp: start.Add(90 * time.Second),
	})
	require.NoError(t, err)

	assert.True(t, result.Tracked)
	assert.False(t, result.Skipped)
	assert.Equal(t, testLearnerID, result.LearnerID)
	assert.InDelta(t, 90.0, result.DurationSeconds, 0.001)

	sessionID, _ := shared.NewSessionID(testSessionID)
	count, err := f.eventLog.Count(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTrackInteractionEndWithoutStart(t *testing.T) {
	// No start mark: the event is still recorded, just with zero duration.
	f := newTrackFixture(t)
	ctx := context.Background()

	result, err := f.handler.Handle(ctx, TrackInteractionCommand{
		RawUserID: testRawUser,
		SessionID: testSessionID,
		Type:      string(behavior.InteractionWarningEngagement),
		Phase:     PhaseEnd,
	})
	require.NoError(t, err)

	assert.True(t, result.Tracked)
	assert.Zero(t, result.DurationSeconds)

	sessionID, _ := shared.NewSessionID(testSessionID)
	count, _ := f.eventLog.Count(ctx, sessionID)
	assert.Equal(t, 1, count)
}

func TestTrackInteractionDurationCap(t *testing.T) {
	// A stale start mark must not produce an absurd duration.
	f := newTrackFixture(t)
	ctx := context.Background()
	start := time.Now().UTC().Add(-26 * time.Hour)

	_, err := f.handler.Handle(ctx, TrackInteractionCommand{
		RawUserID: testRawUser,
		SessionID: testSessionID,
		Type:      string(behavior.InteractionResearchGuideAccess),
		Phase:     PhaseStart,
		Timestamp: start,
	})
	require.NoError(t, err)

	result, err := f.handler.Handle(ctx, TrackInteractionCommand{
		RawUserID: testRawUser,
		SessionID: testSessionID,
		Type:      string(behavior.InteractionResearchGuideAccess),
		Phase:     PhaseEnd,
		Timestamp: start.Add(25 * time.Hour),
	})
	require.NoError(t, err)

	maxDuration := DefaultTrackInteractionHandlerConfig().MaxDuration
	assert.InDelta(t, maxDuration.Seconds(), result.DurationSeconds, 0.001)
}

func TestTrackInteractionOutsideSessionSkips(t *testing.T) {
	f := newTrackFixture(t)

	result, err := f.handler.Handle(context.Background(), TrackInteractionCommand{
		RawUserID: testRawUser,
		SessionID: "",
		Type:      string(behavior.InteractionTooltipUsage),
		Phase:     PhaseEnd,
	})
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.False(t, result.Tracked)
	assert.Empty(t, f.publisher.events)
}

func TestTrackInteractionForwardsCompletions(t *testing.T) {
	f := newTrackFixture(t)

	_, err := f.handler.Handle(context.Background(), TrackInteractionCommand{
		RawUserID: testRawUser,
		SessionID: testSessionID,
		Type:      string(behavior.InteractionAnalysisCompletion),
		Phase:     PhaseEnd,
	})
	require.NoError(t, err)

	require.Len(t, f.forwarder.completions, 1)
	completion := f.forwarder.completions[0]
	assert.Equal(t, shared.LearnerID(testLearnerID), completion.LearnerID)
	assert.Equal(t, behavior.InteractionAnalysisCompletion, completion.Event.Type)
}

func TestTrackInteractionForwardsEveryEndPhase(t *testing.T) {
	// The side channel receives every completed interaction, not only
	// finished analyses: streaks and session time grow on any activity.
	f := newTrackFixture(t)
	ctx := context.Background()

	for _, it := range []behavior.InteractionType{
		behavior.InteractionTooltipUsage,
		behavior.InteractionCommunityContribution,
	} {
		_, err := f.handler.Handle(ctx, TrackInteractionCommand{
			RawUserID: testRawUser,
			SessionID: testSessionID,
			Type:      string(it),
			Phase:     PhaseEnd,
		})
		require.NoError(t, err)
	}

	require.Len(t, f.forwarder.completions, 2)
	assert.Equal(t, behavior.InteractionTooltipUsage, f.forwarder.completions[0].Event.Type)
	assert.Equal(t, behavior.InteractionCommunityContribution, f.forwarder.completions[1].Event.Type)
}

func TestTrackInteractionForwarderFailureIsBestEffort(t *testing.T) {
	// The achievement side channel must never fail the interaction.
	f := newTrackFixture(t)
	f.forwarder.err = errors.New("achievement flow down")

	result, err := f.handler.Handle(context.Background(), TrackInteractionCommand{
		RawUserID: testRawUser,
		SessionID: testSessionID,
		Type:      string(behavior.InteractionAnalysisCompletion),
		Phase:     PhaseEnd,
	})
	require.NoError(t, err)
	assert.True(t, result.Tracked)
}

func TestTrackInteractionPublishesRecordedEvent(t *testing.T) {
	f := newTrackFixture(t)

	_, err := f.handler.Handle(context.Background(), TrackInteractionCommand{
		RawUserID: testRawUser,
		SessionID: testSessionID,
		Type:      string(behavior.InteractionCrossStockComparison),
		Phase:     PhaseEnd,
	})
	require.NoError(t, err)

	recorded := f.publisher.byType(shared.EventInteractionRecorded)
	assert.Len(t, recorded, 1)
}

func TestTrackInteractionValidation(t *testing.T) {
	f := newTrackFixture(t)

	cases := []struct {
		name string
		cmd  TrackInteractionCommand
	}{
		{
			name: "missing user id",
			cmd: TrackInteractionCommand{
				SessionID: testSessionID,
				Type:      string(behavior.InteractionTooltipUsage),
				Phase:     PhaseEnd,
			},
		},
		{
			name: "unknown interaction type",
			cmd: TrackInteractionCommand{
				RawUserID: testRawUser,
				SessionID: testSessionID,
				Type:      "keyboard_smash",
				Phase:     PhaseEnd,
			},
		},
		{
			name: "unknown phase",
			cmd: TrackInteractionCommand{
				RawUserID: testRawUser,
				SessionID: testSessionID,
				Type:      string(behavior.InteractionTooltipUsage),
				Phase:     "pause",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.handler.Handle(context.Background(), tc.cmd)
			assert.Error(t, err)
		})
	}
}
