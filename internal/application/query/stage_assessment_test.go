package query

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/domain/stage"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/memory"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

const (
	testLearner = "8d4f9a2b1c3e5f708192a3b4c5d6e7f8"
	testSession = "6f1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9"
)

func quietLogger() *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = io.Discard
	return logger.New(opts)
}

// mapAssessmentCache is an in-memory AssessmentCache for tests.
type mapAssessmentCache struct {
	mu      sync.Mutex
	entries map[shared.SessionID]CachedAssessment
	sets    int
}

func newMapAssessmentCache() *mapAssessmentCache {
	return &mapAssessmentCache{entries: make(map[shared.SessionID]CachedAssessment)}
}

func (c *mapAssessmentCache) Get(_ context.Context, sessionID shared.SessionID) (*CachedAssessment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.entries[sessionID]
	if !ok {
		return nil, nil
	}
	return &cached, nil
}

func (c *mapAssessmentCache) Set(_ context.Context, sessionID shared.SessionID, cached CachedAssessment, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = cached
	c.sets++
	return nil
}

type assessmentFixture struct {
	handler  *GetStageAssessmentHandler
	eventLog *memory.EventLogStore
	cache    *mapAssessmentCache
}

func newAssessmentFixture(t *testing.T) *assessmentFixture {
	t.Helper()

	f := &assessmentFixture{
		eventLog: memory.NewEventLogStore(0),
		cache:    newMapAssessmentCache(),
	}
	f.handler = NewGetStageAssessmentHandler(
		f.eventLog,
		stage.NewEngine(stage.DefaultEngineConfig()),
		f.cache,
		nil,
		quietLogger(),
		DefaultGetStageAssessmentHandlerConfig(),
	)
	return f
}

func (f *assessmentFixture) appendEvents(t *testing.T, types ...behavior.InteractionType) {
	t.Helper()
	sessionID, err := shared.NewSessionID(testSession)
	require.NoError(t, err)

	now := time.Now().UTC()
	for i, it := range types {
		event := behavior.NewBehavioralEvent(sessionID, it, now.Add(time.Duration(i)*time.Second), 10, nil)
		require.NoError(t, f.eventLog.Append(context.Background(), sessionID, event))
	}
}

func TestStageAssessmentColdStart(t *testing.T) {
	// Fewer than five events short-circuits to the entry stage.
	f := newAssessmentFixture(t)
	f.appendEvents(t, behavior.InteractionTooltipUsage, behavior.InteractionTooltipUsage)

	dto, err := f.handler.Handle(context.Background(), GetStageAssessmentQuery{
		LearnerID: testLearner,
		SessionID: testSession,
	})
	require.NoError(t, err)

	assert.Equal(t, stage.StageGuidedDiscovery, dto.Assessment.CurrentStage)
	assert.InDelta(t, 0.3, dto.Assessment.ConfidenceScore, 0.001)
	assert.False(t, dto.FromCache)
}

func TestStageAssessmentServesFromCache(t *testing.T) {
	f := newAssessmentFixture(t)
	f.appendEvents(t,
		behavior.InteractionAnalysisCompletion,
		behavior.InteractionAnalysisCompletion,
		behavior.InteractionWarningEngagement,
		behavior.InteractionResearchGuideAccess,
		behavior.InteractionCrossStockComparison,
	)
	ctx := context.Background()
	q := GetStageAssessmentQuery{LearnerID: testLearner, SessionID: testSession}

	first, err := f.handler.Handle(ctx, q)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, f.cache.sets)

	second, err := f.handler.Handle(ctx, q)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Assessment.CurrentStage, second.Assessment.CurrentStage)
	assert.Equal(t, 1, f.cache.sets)
}

func TestStageAssessmentInvalidatedByNewEvents(t *testing.T) {
	f := newAssessmentFixture(t)
	f.appendEvents(t,
		behavior.InteractionAnalysisCompletion,
		behavior.InteractionAnalysisCompletion,
		behavior.InteractionWarningEngagement,
		behavior.InteractionResearchGuideAccess,
		behavior.InteractionCrossStockComparison,
	)
	ctx := context.Background()
	q := GetStageAssessmentQuery{LearnerID: testLearner, SessionID: testSession}

	_, err := f.handler.Handle(ctx, q)
	require.NoError(t, err)

	// Two new events: still fresh.
	f.appendEvents(t, behavior.InteractionTooltipUsage, behavior.InteractionTooltipUsage)
	dto, err := f.handler.Handle(ctx, q)
	require.NoError(t, err)
	assert.True(t, dto.FromCache)

	// Third new event crosses the staleness threshold.
	f.appendEvents(t, behavior.InteractionTooltipUsage)
	dto, err = f.handler.Handle(ctx, q)
	require.NoError(t, err)
	assert.False(t, dto.FromCache)
	assert.Equal(t, 2, f.cache.sets)
}

func TestStageAssessmentForceRefresh(t *testing.T) {
	f := newAssessmentFixture(t)
	f.appendEvents(t,
		behavior.InteractionAnalysisCompletion,
		behavior.InteractionAnalysisCompletion,
		behavior.InteractionWarningEngagement,
		behavior.InteractionResearchGuideAccess,
		behavior.InteractionCrossStockComparison,
	)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, GetStageAssessmentQuery{LearnerID: testLearner, SessionID: testSession})
	require.NoError(t, err)

	dto, err := f.handler.Handle(ctx, GetStageAssessmentQuery{
		LearnerID:    testLearner,
		SessionID:    testSession,
		ForceRefresh: true,
	})
	require.NoError(t, err)
	assert.False(t, dto.FromCache)
}

func TestStageAssessmentExpiredCacheRecomputes(t *testing.T) {
	f := newAssessmentFixture(t)
	f.appendEvents(t, behavior.InteractionAnalysisCompletion)
	ctx := context.Background()
	sessionID, _ := shared.NewSessionID(testSession)

	// Seed a cache entry that is already past its TTL.
	stale := CachedAssessment{
		Assessment: stage.AssessmentResult{CurrentStage: stage.StageAnalyticalMastery},
		EventCount: 1,
		CachedAt:   time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, f.cache.Set(ctx, sessionID, stale, 0))

	dto, err := f.handler.Handle(ctx, GetStageAssessmentQuery{LearnerID: testLearner, SessionID: testSession})
	require.NoError(t, err)
	assert.False(t, dto.FromCache)
	assert.Equal(t, stage.StageGuidedDiscovery, dto.Assessment.CurrentStage)
}

func TestStageAssessmentValidation(t *testing.T) {
	f := newAssessmentFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, GetStageAssessmentQuery{SessionID: testSession})
	assert.Error(t, err)

	_, err = f.handler.Handle(ctx, GetStageAssessmentQuery{LearnerID: testLearner})
	assert.Error(t, err)

	_, err = f.handler.Handle(ctx, GetStageAssessmentQuery{LearnerID: testLearner, SessionID: "not-a-uuid"})
	assert.Error(t, err)
}
