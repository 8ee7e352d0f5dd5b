package saga

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/progress"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/domain/stage"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/memory"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

const (
	testLearner = shared.LearnerID("8d4f9a2b1c3e5f708192a3b4c5d6e7f8")
	testSession = shared.SessionID("6f1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9")
)

func quietLogger() *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = io.Discard
	return logger.New(opts)
}

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

func (p *capturePublisher) countByType(t shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type sagaFixture struct {
	saga      *AchievementFlowSaga
	store     *memory.ProgressStore
	eventLog  *memory.EventLogStore
	publisher *capturePublisher
}

func newSagaFixture(t *testing.T, config AchievementFlowConfig) *sagaFixture {
	t.Helper()

	f := &sagaFixture{
		store:     memory.NewProgressStore(),
		eventLog:  memory.NewEventLogStore(0),
		publisher: &capturePublisher{},
	}
	f.saga = NewAchievementFlowSaga(
		f.store,
		f.eventLog,
		stage.NewEngine(stage.DefaultEngineConfig()),
		f.publisher,
		quietLogger(),
		config,
	)
	return f
}

func completionAt(at time.Time) CompletionInput {
	return CompletionInput{
		LearnerID: testLearner,
		SessionID: testSession,
		Event: behavior.NewBehavioralEvent(
			testSession,
			behavior.InteractionAnalysisCompletion,
			at,
			120,
			map[string]interface{}{"company": "NVDA"},
		),
	}
}

func TestAchievementFlowFirstCompletion(t *testing.T) {
	f := newSagaFixture(t, DefaultAchievementFlowConfig())
	ctx := context.Background()

	result, err := f.saga.Execute(ctx, completionAt(time.Now().UTC()))
	require.NoError(t, err)

	assert.Equal(t, 1, result.AnalysisCount)
	assert.True(t, result.HasNewBadges())

	types := make([]progress.BadgeType, 0, len(result.NewBadges))
	for _, b := range result.NewBadges {
		types = append(types, b.Type)
	}
	assert.Contains(t, types, progress.BadgeFirstAnalysis)
	assert.Greater(t, result.TotalPointsAwarded, 0.0)

	// The record and the badge ledger must both be persisted.
	metrics, err := f.store.GetMetrics(ctx, testLearner)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.AnalysisCount)
	assert.Greater(t, metrics.StageProgressionPoints.Float64(), 0.0)

	has, err := f.store.HasBadge(ctx, testLearner, progress.BadgeFirstAnalysis)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestAchievementFlowNoDuplicateBadges(t *testing.T) {
	f := newSagaFixture(t, DefaultAchievementFlowConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := f.saga.Execute(ctx, completionAt(now))
	require.NoError(t, err)
	require.True(t, first.HasNewBadges())

	second, err := f.saga.Execute(ctx, completionAt(now.Add(time.Minute)))
	require.NoError(t, err)

	for _, b := range second.NewBadges {
		assert.NotEqual(t, progress.BadgeFirstAnalysis, b.Type)
	}
	assert.Equal(t, 2, second.AnalysisCount)
}

func TestAchievementFlowBadgesDisabled(t *testing.T) {
	f := newSagaFixture(t, AchievementFlowConfig{EnableBadges: false, MaxBadgesPerRun: 5})

	result, err := f.saga.Execute(context.Background(), completionAt(time.Now().UTC()))
	require.NoError(t, err)

	assert.False(t, result.HasNewBadges())
	assert.Zero(t, result.TotalPointsAwarded)
	// Metrics still accumulate with gamification off.
	assert.Equal(t, 1, result.AnalysisCount)
}

func TestAchievementFlowStreakAcrossDays(t *testing.T) {
	f := newSagaFixture(t, DefaultAchievementFlowConfig())
	ctx := context.Background()
	day1 := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	_, err := f.saga.Execute(ctx, completionAt(day1))
	require.NoError(t, err)

	result, err := f.saga.Execute(ctx, completionAt(day1.Add(24*time.Hour)))
	require.NoError(t, err)
	assert.True(t, result.StreakUpdate.Changed)

	metrics, err := f.store.GetMetrics(ctx, testLearner)
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.Streak.Current)

	// A gap longer than one day resets the streak to one.
	result, err = f.saga.Execute(ctx, completionAt(day1.Add(5*24*time.Hour)))
	require.NoError(t, err)
	assert.True(t, result.StreakUpdate.Broken)
	assert.Equal(t, 2, result.StreakUpdate.PreviousStreak)

	metrics, err = f.store.GetMetrics(ctx, testLearner)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.Streak.Current)
}

func TestAchievementFlowPublishesBadgeEvents(t *testing.T) {
	f := newSagaFixture(t, DefaultAchievementFlowConfig())

	result, err := f.saga.Execute(context.Background(), completionAt(time.Now().UTC()))
	require.NoError(t, err)

	assert.Equal(t, len(result.NewBadges), f.publisher.countByType(shared.EventBadgeUnlocked))
	assert.Equal(t, 1, f.publisher.countByType(shared.EventMetricsUpdated))
}

func TestAchievementFlowInvalidInput(t *testing.T) {
	f := newSagaFixture(t, DefaultAchievementFlowConfig())

	_, err := f.saga.Execute(context.Background(), CompletionInput{})
	assert.Error(t, err)
}

func TestAchievementFlowCompareAndSwap(t *testing.T) {
	cfg := DefaultAchievementFlowConfig()
	cfg.UseCompareAndSwap = true
	f := newSagaFixture(t, cfg)
	ctx := context.Background()

	// Two sequential runs: each CAS sees the UpdatedAt it loaded.
	_, err := f.saga.Execute(ctx, completionAt(time.Now().UTC()))
	require.NoError(t, err)

	result, err := f.saga.Execute(ctx, completionAt(time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, 2, result.AnalysisCount)
}
