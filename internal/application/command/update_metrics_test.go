package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/memory"
)

func floatPtr(v float64) *float64 { return &v }

func TestUpdateMetricsCreatesRecord(t *testing.T) {
	store := memory.NewProgressStore()
	publisher := &capturePublisher{}
	handler := NewUpdateMetricsHandler(store, publisher, quietLogger())

	result, err := handler.Handle(context.Background(), UpdateMetricsCommand{
		LearnerID:         testLearnerID,
		AnalysisCompleted: true,
		SessionDuration:   240,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.AnalysisCount)
	assert.Equal(t, 1, result.CurrentStreak)

	learnerID, _ := shared.NewLearnerID(testLearnerID)
	metrics, err := store.GetMetrics(context.Background(), learnerID)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.AnalysisCount)
	assert.InDelta(t, 240.0, metrics.TotalSessionTime, 0.001)
}

func TestUpdateMetricsMergesIntoExisting(t *testing.T) {
	store := memory.NewProgressStore()
	handler := NewUpdateMetricsHandler(store, &capturePublisher{}, quietLogger())
	ctx := context.Background()

	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	_, err := handler.Handle(ctx, UpdateMetricsCommand{
		LearnerID:         testLearnerID,
		AnalysisCompleted: true,
		OccurredAt:        day1,
	})
	require.NoError(t, err)

	result, err := handler.Handle(ctx, UpdateMetricsCommand{
		LearnerID:         testLearnerID,
		AnalysisCompleted: true,
		SkillImprovements: map[string]float64{"trend_analysis": 0.3},
		OccurredAt:        day2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.AnalysisCount)
	assert.Equal(t, 2, result.CurrentStreak)

	learnerID, _ := shared.NewLearnerID(testLearnerID)
	metrics, _ := store.GetMetrics(ctx, learnerID)
	assert.InDelta(t, 0.3, metrics.SkillCompetencies["trend_analysis"], 0.001)
}

func TestUpdateMetricsPublishesEvents(t *testing.T) {
	store := memory.NewProgressStore()
	publisher := &capturePublisher{}
	handler := NewUpdateMetricsHandler(store, publisher, quietLogger())
	ctx := context.Background()

	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := handler.Handle(ctx, UpdateMetricsCommand{
		LearnerID:         testLearnerID,
		AnalysisCompleted: true,
		OccurredAt:        day1,
	})
	require.NoError(t, err)
	assert.Len(t, publisher.byType(shared.EventMetricsUpdated), 1)

	// A three-day gap breaks the streak and emits the broken event.
	_, err = handler.Handle(ctx, UpdateMetricsCommand{
		LearnerID:         testLearnerID,
		AnalysisCompleted: true,
		OccurredAt:        day1.Add(3 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, publisher.byType(shared.EventDailyStreakBroken), 1)
}

func TestUpdateMetricsValidation(t *testing.T) {
	handler := NewUpdateMetricsHandler(memory.NewProgressStore(), &capturePublisher{}, quietLogger())
	ctx := context.Background()

	_, err := handler.Handle(ctx, UpdateMetricsCommand{
		LearnerID:          testLearnerID,
		PatternPerformance: floatPtr(1.5),
	})
	assert.Error(t, err)

	_, err = handler.Handle(ctx, UpdateMetricsCommand{
		LearnerID:       testLearnerID,
		SessionDuration: -10,
	})
	assert.Error(t, err)

	_, err = handler.Handle(ctx, UpdateMetricsCommand{})
	assert.Error(t, err)
}

func TestUpdateMetricsRejectsMalformedLearnerID(t *testing.T) {
	handler := NewUpdateMetricsHandler(memory.NewProgressStore(), &capturePublisher{}, quietLogger())

	_, err := handler.Handle(context.Background(), UpdateMetricsCommand{
		LearnerID:         "not-a-learner-id",
		AnalysisCompleted: true,
	})
	assert.Error(t, err)
}
