package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/progress"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
	"github.com/finsight-hub/finsight-progression/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE METRICS COMMAND
// Merges an externally observed progress delta into the learner's cumulative
// metrics record. The normal path is the achievement flow reacting to
// interaction completions; this command exists for observations that arrive
// outside an interaction, such as graded exercise results or imported
// history. It deliberately does not run badge checks.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateMetricsCommand contains a progress delta for one learner.
type UpdateMetricsCommand struct {
	// LearnerID is the pseudonymous learner id.
	LearnerID string

	// AnalysisCompleted increments the completed analysis counter.
	AnalysisCompleted bool

	// SkillImprovements are additive competency deltas, capped at 1.0.
	SkillImprovements map[string]float64

	// PatternPerformance, ResearchQuality and CommunityContribution are
	// fresh observations in [0,1], merged by exponential smoothing.
	PatternPerformance    *float64
	ResearchQuality       *float64
	CommunityContribution *float64

	// SessionDuration in seconds, added to total session time.
	SessionDuration float64

	// OccurredAt is when the activity happened (defaults to now if zero).
	// Drives the daily streak.
	OccurredAt time.Time
}

// Validate validates the command.
func (c UpdateMetricsCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("update_metrics: learner id is required")
	}

	for _, observation := range []*float64{c.PatternPerformance, c.ResearchQuality, c.CommunityContribution} {
		if observation != nil && (*observation < 0 || *observation > 1) {
			return errors.New("update_metrics: observations must be in [0,1]")
		}
	}

	if c.SessionDuration < 0 {
		return errors.New("update_metrics: session duration cannot be negative")
	}

	return nil
}

// UpdateMetricsResult reports the state after the merge.
type UpdateMetricsResult struct {
	LearnerID     shared.LearnerID
	AnalysisCount int
	CurrentStreak int
	StreakUpdate  progress.StreakUpdate
}

// UpdateMetricsHandler handles UpdateMetricsCommand.
type UpdateMetricsHandler struct {
	store          progress.Store
	eventPublisher shared.EventPublisher
	log            *logger.Logger
	retrier        *retry.Retrier
}

// NewUpdateMetricsHandler creates a new UpdateMetricsHandler.
func NewUpdateMetricsHandler(
	store progress.Store,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *UpdateMetricsHandler {
	return &UpdateMetricsHandler{
		store:          store,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("update_metrics")),
		retrier:        retry.DatabaseRetrier(),
	}
}

// Handle merges the delta and persists the record (last writer wins).
func (h *UpdateMetricsHandler) Handle(ctx context.Context, cmd UpdateMetricsCommand) (*UpdateMetricsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	learnerID, err := shared.NewLearnerID(cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("update_metrics: %w", err)
	}

	metrics, err := h.store.GetMetrics(ctx, learnerID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("update_metrics: load metrics: %w", err)
		}
		metrics = progress.NewProgressMetrics(learnerID)
	}

	update := metrics.ApplyCompletion(progress.CompletionData{
		AnalysisCompleted:     cmd.AnalysisCompleted,
		SkillImprovements:     cmd.SkillImprovements,
		PatternPerformance:    cmd.PatternPerformance,
		ResearchQuality:       cmd.ResearchQuality,
		CommunityContribution: cmd.CommunityContribution,
		SessionDuration:       cmd.SessionDuration,
		OccurredAt:            cmd.OccurredAt,
	})

	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.store.UpsertMetrics(ctx, metrics)
	})
	if err != nil {
		return nil, fmt.Errorf("update_metrics: persist: %w", err)
	}

	h.publish(learnerID, metrics, update)

	return &UpdateMetricsResult{
		LearnerID:     learnerID,
		AnalysisCount: metrics.AnalysisCount,
		CurrentStreak: metrics.Streak.Current,
		StreakUpdate:  update,
	}, nil
}

// publish emits domain events best-effort.
func (h *UpdateMetricsHandler) publish(learnerID shared.LearnerID, metrics *progress.ProgressMetrics, update progress.StreakUpdate) {
	if h.eventPublisher == nil {
		return
	}

	event := shared.NewMetricsUpdatedEvent(learnerID.String(), metrics.AnalysisCount, metrics.Streak.Current)
	if err := h.eventPublisher.Publish(event); err != nil {
		h.log.Warn("failed to publish metrics updated event",
			logger.LearnerID(learnerID.String()),
			logger.Err(err),
		)
	}

	if update.Broken {
		broken := shared.NewDailyStreakBrokenEvent(learnerID.String(), update.PreviousStreak, update.DaysMissed)
		if err := h.eventPublisher.Publish(broken); err != nil {
			h.log.Warn("failed to publish streak broken event",
				logger.LearnerID(learnerID.String()),
				logger.Err(err),
			)
		}
	}
}
