package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/domain/progress"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

const testLearner = shared.LearnerID("8d4f9a2b1c3e5f708192a3b4c5d6e7f8")

func TestProgressStoreRoundTrip(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	_, err := store.GetMetrics(ctx, testLearner)
	assert.ErrorIs(t, err, shared.ErrMetricsNotFound)

	metrics := progress.NewProgressMetrics(testLearner)
	metrics.AnalysisCount = 3
	require.NoError(t, store.UpsertMetrics(ctx, metrics))

	loaded, err := store.GetMetrics(ctx, testLearner)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.AnalysisCount)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestProgressStoreReturnsCopies(t *testing.T) {
	// Mutating a loaded record must not leak back into the store.
	store := NewProgressStore()
	ctx := context.Background()

	metrics := progress.NewProgressMetrics(testLearner)
	metrics.SkillCompetencies["trend_analysis"] = 0.5
	require.NoError(t, store.UpsertMetrics(ctx, metrics))

	loaded, _ := store.GetMetrics(ctx, testLearner)
	loaded.AnalysisCount = 99
	loaded.SkillCompetencies["trend_analysis"] = 1.0

	reloaded, _ := store.GetMetrics(ctx, testLearner)
	assert.Equal(t, 0, reloaded.AnalysisCount)
	assert.InDelta(t, 0.5, reloaded.SkillCompetencies["trend_analysis"], 0.001)
}

func TestProgressStoreCompareAndSwap(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	// Zero expected timestamp means "must not exist yet".
	metrics := progress.NewProgressMetrics(testLearner)
	require.NoError(t, store.CompareAndSwapMetrics(ctx, metrics, time.Time{}))

	err := store.CompareAndSwapMetrics(ctx, metrics, time.Time{})
	assert.ErrorIs(t, err, shared.ErrMetricsConflict)

	// A swap against the stored timestamp succeeds; a stale one conflicts.
	current, _ := store.GetMetrics(ctx, testLearner)
	require.NoError(t, store.CompareAndSwapMetrics(ctx, current, current.UpdatedAt))

	err = store.CompareAndSwapMetrics(ctx, current, current.UpdatedAt.Add(-time.Second))
	assert.ErrorIs(t, err, shared.ErrMetricsConflict)
}

func TestProgressStoreBadgeDeduplication(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	badge, err := progress.NewBadge(progress.BadgeFirstAnalysis, nil, time.Now().UTC())
	require.NoError(t, err)

	inserted, err := store.SaveBadge(ctx, testLearner, badge)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.SaveBadge(ctx, testLearner, badge)
	require.NoError(t, err)
	assert.False(t, inserted)

	badges, err := store.ListBadges(ctx, testLearner)
	require.NoError(t, err)
	assert.Len(t, badges, 1)

	has, err := store.HasBadge(ctx, testLearner, progress.BadgeFirstAnalysis)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = store.HasBadge(ctx, testLearner, progress.BadgeGoldAnalyst)
	require.NoError(t, err)
	assert.False(t, has)
}
