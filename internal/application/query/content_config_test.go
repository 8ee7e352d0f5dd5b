package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/stage"
)

func TestContentConfigAdaptsToStage(t *testing.T) {
	f := newAssessmentFixture(t)
	f.appendEvents(t, behavior.InteractionTooltipUsage)
	handler := NewGetContentConfigHandler(f.handler, quietLogger(), true)

	dto, err := handler.Handle(context.Background(), GetContentConfigQuery{
		LearnerID:   testLearner,
		SessionID:   testSession,
		CompanyName: "NVDA",
	})
	require.NoError(t, err)

	assert.True(t, dto.AdaptationEnabled)
	// Cold start lands on the entry stage configuration.
	assert.Equal(t, stage.ContentFor(
		stage.AssessmentResult{CurrentStage: stage.StageGuidedDiscovery},
		stage.AnalysisContext{CompanyName: "NVDA"},
	), dto.Config)
}

func TestContentConfigKillswitch(t *testing.T) {
	// With adaptation off every learner gets the entry stage config and
	// no assessment runs.
	f := newAssessmentFixture(t)
	handler := NewGetContentConfigHandler(f.handler, quietLogger(), false)

	dto, err := handler.Handle(context.Background(), GetContentConfigQuery{
		LearnerID: testLearner,
		SessionID: testSession,
	})
	require.NoError(t, err)

	assert.False(t, dto.AdaptationEnabled)
	assert.Equal(t, 0, f.cache.sets)
}

func TestContentConfigValidation(t *testing.T) {
	f := newAssessmentFixture(t)
	handler := NewGetContentConfigHandler(f.handler, quietLogger(), true)

	_, err := handler.Handle(context.Background(), GetContentConfigQuery{SessionID: testSession})
	assert.Error(t, err)
}
