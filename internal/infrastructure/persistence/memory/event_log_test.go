package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

const testSession = shared.SessionID("6f1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9")

func TestEventLogStoreAppendAndLoad(t *testing.T) {
	store := NewEventLogStore(0)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		event := behavior.NewBehavioralEvent(
			testSession,
			behavior.InteractionTooltipUsage,
			now.Add(time.Duration(i)*time.Minute),
			5,
			nil,
		)
		require.NoError(t, store.Append(ctx, testSession, event))
	}

	count, err := store.Count(ctx, testSession)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	log, err := store.Load(ctx, testSession)
	require.NoError(t, err)
	assert.Equal(t, 3, log.Len())
}

func TestEventLogStoreEvictsOutsideWindow(t *testing.T) {
	// Appends prune events older than the rolling window.
	store := NewEventLogStore(time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	old := behavior.NewBehavioralEvent(testSession, behavior.InteractionTooltipUsage, now.Add(-2*time.Hour), 5, nil)
	require.NoError(t, store.Append(ctx, testSession, old))

	fresh := behavior.NewBehavioralEvent(testSession, behavior.InteractionAnalysisCompletion, now, 5, nil)
	require.NoError(t, store.Append(ctx, testSession, fresh))

	count, err := store.Count(ctx, testSession)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEventLogStoreSessionIsolation(t *testing.T) {
	store := NewEventLogStore(0)
	ctx := context.Background()
	other := shared.SessionID("0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f0")

	event := behavior.NewBehavioralEvent(testSession, behavior.InteractionTooltipUsage, time.Now().UTC(), 5, nil)
	require.NoError(t, store.Append(ctx, testSession, event))

	count, err := store.Count(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStartMarkStoreTakeRemoves(t *testing.T) {
	store := NewStartMarkStore()
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SetStart(ctx, testSession, behavior.InteractionTooltipUsage, at))

	got, ok, err := store.TakeStart(ctx, testSession, behavior.InteractionTooltipUsage)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(at))

	// Taking is destructive: the second take misses.
	_, ok, err = store.TakeStart(ctx, testSession, behavior.InteractionTooltipUsage)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStartMarkStoreLastWriteWins(t *testing.T) {
	store := NewStartMarkStore()
	ctx := context.Background()
	first := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	second := first.Add(10 * time.Minute)

	require.NoError(t, store.SetStart(ctx, testSession, behavior.InteractionTooltipUsage, first))
	require.NoError(t, store.SetStart(ctx, testSession, behavior.InteractionTooltipUsage, second))

	got, ok, err := store.TakeStart(ctx, testSession, behavior.InteractionTooltipUsage)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(second))
}
