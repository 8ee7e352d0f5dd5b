// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/progress"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/domain/stage"
	"github.com/finsight-hub/finsight-progression/pkg/circuitbreaker"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
	"github.com/finsight-hub/finsight-progression/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Complex business process: completion processing and badge granting
// Flow: Load Metrics → Apply Completion → Check Conditions → Grant Badges →
//
//	Award Progression Points → Persist Metrics → Publish Events
//
// The saga is the write-side consumer of the interaction pipeline. It runs as
// a best-effort side channel: the interaction that triggered it has already
// been recorded, so failures here are logged, retried where sensible, and
// never bubble back to the learner-facing request.
// ══════════════════════════════════════════════════════════════════════════════

// CompletionInput contains the data needed to process one completed
// interaction.
type CompletionInput struct {
	// LearnerID - the pseudonymous learner the completion belongs to.
	LearnerID shared.LearnerID

	// SessionID - the session the interaction happened in.
	SessionID shared.SessionID

	// Event - the behavioral event that ended.
	Event behavior.BehavioralEvent
}

// Validate checks if the input is valid.
func (i CompletionInput) Validate() error {
	if i.LearnerID.IsEmpty() {
		return errors.New("achievement_flow: learner id is required")
	}
	if i.SessionID.IsEmpty() {
		return errors.New("achievement_flow: session id is required")
	}
	if !i.Event.IsValid() {
		return errors.New("achievement_flow: behavioral event is malformed")
	}
	return nil
}

// AchievementFlowResult contains the result of completion processing.
type AchievementFlowResult struct {
	// LearnerID - the learner whose progress was updated.
	LearnerID shared.LearnerID

	// NewBadges - badges granted during this run.
	NewBadges []progress.Badge

	// TotalPointsAwarded - progression points from all granted badges.
	TotalPointsAwarded float64

	// StreakUpdate - what happened to the daily streak.
	StreakUpdate progress.StreakUpdate

	// AnalysisCount - total completed analyses after this run.
	AnalysisCount int

	// ProcessedAt - when the flow completed.
	ProcessedAt time.Time
}

// HasNewBadges returns true if any badges were granted.
func (r *AchievementFlowResult) HasNewBadges() bool {
	return len(r.NewBadges) > 0
}

// AchievementFlowStep represents a step in the achievement flow.
type AchievementFlowStep string

const (
	StepLoadMetrics     AchievementFlowStep = "load_metrics"
	StepApplyCompletion AchievementFlowStep = "apply_completion"
	StepAssessStage     AchievementFlowStep = "assess_stage"
	StepCheckConditions AchievementFlowStep = "check_conditions"
	StepGrantBadges     AchievementFlowStep = "grant_badges"
	StepAwardPoints     AchievementFlowStep = "award_points"
	StepPersistMetrics  AchievementFlowStep = "persist_metrics"
	StepPublishEvents   AchievementFlowStep = "publish_events"
	StepFlowComplete    AchievementFlowStep = "complete"
)

// achievementFlowState tracks the current state of the saga run.
type achievementFlowState struct {
	CurrentStep AchievementFlowStep
	Input       CompletionInput
	Metrics     *progress.ProgressMetrics

	// LoadedUpdatedAt is the record's UpdatedAt as loaded, before any
	// mutation. Compare-and-swap writes check against it; zero means
	// the record did not exist yet.
	LoadedUpdatedAt time.Time

	EarnedBefore map[progress.BadgeType]bool
	Assessment   *stage.AssessmentResult
	SessionLog   *behavior.EventLog
	StreakUpdate progress.StreakUpdate
	NewBadges    []progress.Badge
	TotalPoints  float64
	StartedAt    time.Time
	FailedStep   AchievementFlowStep
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowSaga orchestrates completion processing: metrics updates,
// badge granting, progression points and the resulting domain events.
// It implements behavior.CompletionForwarder.
type AchievementFlowSaga struct {
	// Dependencies
	store      progress.Store
	eventLog   behavior.EventLogStore
	engine     *stage.Engine
	ruleEngine *progress.RuleEngine
	eventBus   shared.EventPublisher
	log        *logger.Logger

	// Resilience
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker

	// Configuration
	enableBadges      bool
	useCompareAndSwap bool
	maxBadgesPerRun   int
}

// AchievementFlowConfig contains configuration for the achievement flow saga.
type AchievementFlowConfig struct {
	EnableBadges      bool
	UseCompareAndSwap bool
	MaxBadgesPerRun   int
}

// DefaultAchievementFlowConfig returns default configuration.
func DefaultAchievementFlowConfig() AchievementFlowConfig {
	return AchievementFlowConfig{
		EnableBadges:      true,
		UseCompareAndSwap: false,
		MaxBadgesPerRun:   5, // Prevent spam if something goes wrong
	}
}

// NewAchievementFlowSaga creates a new achievement flow saga.
func NewAchievementFlowSaga(
	store progress.Store,
	eventLog behavior.EventLogStore,
	engine *stage.Engine,
	eventBus shared.EventPublisher,
	log *logger.Logger,
	config AchievementFlowConfig,
) *AchievementFlowSaga {
	if config.MaxBadgesPerRun == 0 {
		config.MaxBadgesPerRun = DefaultAchievementFlowConfig().MaxBadgesPerRun
	}

	return &AchievementFlowSaga{
		store:             store,
		eventLog:          eventLog,
		engine:            engine,
		ruleEngine:        progress.NewRuleEngine(),
		eventBus:          eventBus,
		log:               log,
		retrier:           retry.DatabaseRetrier(),
		breaker:           circuitbreaker.ProgressStoreBreaker(nil),
		enableBadges:      config.EnableBadges,
		useCompareAndSwap: config.UseCompareAndSwap,
		maxBadgesPerRun:   config.MaxBadgesPerRun,
	}
}

// ProcessCompletion implements behavior.CompletionForwarder.
func (s *AchievementFlowSaga) ProcessCompletion(ctx context.Context, completion behavior.Completion) error {
	_, err := s.Execute(ctx, CompletionInput{
		LearnerID: completion.LearnerID,
		SessionID: completion.SessionID,
		Event:     completion.Event,
	})
	return err
}

// Execute runs the complete flow for one interaction completion.
func (s *AchievementFlowSaga) Execute(ctx context.Context, input CompletionInput) (*AchievementFlowResult, error) {
	state := &achievementFlowState{
		CurrentStep: StepLoadMetrics,
		Input:       input,
		StartedAt:   time.Now().UTC(),
	}

	// Validate input
	if err := input.Validate(); err != nil {
		state.FailedStep = StepLoadMetrics
		return nil, s.wrapError(state, err)
	}

	// Step 1: Load metrics (and already-earned badges)
	if err := s.stepLoadMetrics(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Fold the completion into the metrics
	state.CurrentStep = StepApplyCompletion
	s.stepApplyCompletion(state)

	// Step 3: Assess the current stage for badge context.
	// Non-critical: stage-gated badges simply wait for the next completion.
	state.CurrentStep = StepAssessStage
	if err := s.stepAssessStage(ctx, state); err != nil {
		s.log.Warn("stage assessment for badge context failed",
			logger.LearnerID(state.Input.LearnerID.String()),
			logger.Err(err),
		)
	}

	// Step 4: Evaluate achievement conditions
	state.CurrentStep = StepCheckConditions
	s.stepCheckConditions(state)

	// Step 5: Grant badges (idempotent per learner+type)
	state.CurrentStep = StepGrantBadges
	if err := s.stepGrantBadges(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 6: Award progression points for granted badges
	state.CurrentStep = StepAwardPoints
	s.stepAwardPoints(state)

	// Step 7: Persist the updated metrics record
	state.CurrentStep = StepPersistMetrics
	if err := s.stepPersistMetrics(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 8: Publish domain events
	state.CurrentStep = StepPublishEvents
	s.stepPublishEvents(state)

	// Complete
	state.CurrentStep = StepFlowComplete
	now := time.Now().UTC()

	return &AchievementFlowResult{
		LearnerID:          input.LearnerID,
		NewBadges:          state.NewBadges,
		TotalPointsAwarded: state.TotalPoints,
		StreakUpdate:       state.StreakUpdate,
		AnalysisCount:      state.Metrics.AnalysisCount,
		ProcessedAt:        now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepLoadMetrics loads the learner's metrics record and earned badges.
// A learner with no record yet gets a fresh one.
func (s *AchievementFlowSaga) stepLoadMetrics(ctx context.Context, state *achievementFlowState) error {
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.retrier.Do(ctx, func(ctx context.Context) error {
			metrics, err := s.store.GetMetrics(ctx, state.Input.LearnerID)
			if err != nil {
				if shared.IsNotFound(err) {
					state.Metrics = progress.NewProgressMetrics(state.Input.LearnerID)
					return nil
				}
				return err
			}
			state.Metrics = metrics
			state.LoadedUpdatedAt = metrics.UpdatedAt
			return nil
		})
	})
	if err != nil {
		state.FailedStep = StepLoadMetrics
		return fmt.Errorf("failed to load metrics: %w", err)
	}

	badges, err := s.store.ListBadges(ctx, state.Input.LearnerID)
	if err != nil {
		state.FailedStep = StepLoadMetrics
		return fmt.Errorf("failed to load earned badges: %w", err)
	}
	state.EarnedBefore = progress.EarnedSet(badges)

	return nil
}

// stepApplyCompletion folds the behavioral event into the metrics record.
func (s *AchievementFlowSaga) stepApplyCompletion(state *achievementFlowState) {
	data := completionDataFromEvent(state.Input.Event)
	state.StreakUpdate = state.Metrics.ApplyCompletion(data)
}

// stepAssessStage runs a stage assessment over the session's event log so
// stage-gated badge criteria see the current stage.
func (s *AchievementFlowSaga) stepAssessStage(ctx context.Context, state *achievementFlowState) error {
	if s.engine == nil || s.eventLog == nil {
		return nil
	}

	log, err := s.eventLog.Load(ctx, state.Input.SessionID)
	if err != nil {
		return err
	}

	assessment := s.engine.Assess(log)
	state.Assessment = &assessment
	state.SessionLog = log
	return nil
}

// stepCheckConditions evaluates the badge catalogue against updated metrics.
func (s *AchievementFlowSaga) stepCheckConditions(state *achievementFlowState) {
	if !s.enableBadges {
		return
	}

	achCtx := &progress.AchievementContext{
		LearnerID: state.Input.LearnerID,
		SessionID: state.Input.SessionID,
	}
	if state.Assessment != nil {
		achCtx = progress.NewAchievementContext(
			state.Input.LearnerID,
			state.Input.SessionID,
			*state.Assessment,
			state.SessionLog,
		)
	}

	types := s.ruleEngine.CheckAchievementConditions(state.Metrics, state.EarnedBefore, achCtx)

	// Limit badges per run to prevent spam
	if len(types) > s.maxBadgesPerRun {
		types = types[:s.maxBadgesPerRun]
	}

	now := time.Now().UTC()
	for _, t := range types {
		badge, err := progress.NewBadge(t, achCtx, now)
		if err != nil {
			s.log.Warn("skipping badge outside the catalogue",
				logger.BadgeName(string(t)),
				logger.Err(err),
			)
			continue
		}
		state.NewBadges = append(state.NewBadges, badge)
	}
}

// stepGrantBadges persists the new badges. SaveBadge is idempotent per
// (learner, type): a concurrent run granting the same badge is a no-op here,
// and such duplicates are dropped from the result.
func (s *AchievementFlowSaga) stepGrantBadges(ctx context.Context, state *achievementFlowState) error {
	granted := make([]progress.Badge, 0, len(state.NewBadges))

	for _, badge := range state.NewBadges {
		inserted, err := s.store.SaveBadge(ctx, state.Input.LearnerID, badge)
		if err != nil {
			state.FailedStep = StepGrantBadges
			return fmt.Errorf("failed to save badge %s: %w", badge.Type, err)
		}
		if inserted {
			granted = append(granted, badge)
		}
	}

	state.NewBadges = granted
	return nil
}

// stepAwardPoints adds progression points for every granted badge.
func (s *AchievementFlowSaga) stepAwardPoints(state *achievementFlowState) {
	total := 0.0
	for _, badge := range state.NewBadges {
		total += float64(badge.AchievementValue)
	}
	if total > 0 {
		state.Metrics.AddProgressionPoints(total)
	}
	state.TotalPoints = total
}

// stepPersistMetrics saves the updated metrics record.
func (s *AchievementFlowSaga) stepPersistMetrics(ctx context.Context, state *achievementFlowState) error {
	expectedUpdatedAt := state.LoadedUpdatedAt

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.retrier.Do(ctx, func(ctx context.Context) error {
			if s.useCompareAndSwap {
				err := s.store.CompareAndSwapMetrics(ctx, state.Metrics, expectedUpdatedAt)
				if errors.Is(err, shared.ErrMetricsConflict) {
					// A concurrent writer won; surface the conflict as
					// permanent so the retrier does not hammer the row.
					return retry.Permanent(err)
				}
				return err
			}
			return s.store.UpsertMetrics(ctx, state.Metrics)
		})
	})
	if err != nil {
		state.FailedStep = StepPersistMetrics
		return fmt.Errorf("failed to persist metrics: %w", err)
	}

	return nil
}

// stepPublishEvents publishes domain events for this run. Events are a
// side channel; publish failures are logged and dropped.
func (s *AchievementFlowSaga) stepPublishEvents(state *achievementFlowState) {
	if s.eventBus == nil {
		return
	}

	learnerID := state.Input.LearnerID.String()

	metricsEvent := shared.NewMetricsUpdatedEvent(
		learnerID,
		state.Metrics.AnalysisCount,
		state.Metrics.Streak.Current,
	)
	if err := s.eventBus.Publish(metricsEvent); err != nil {
		s.log.Warn("failed to publish metrics event", logger.Err(err))
	}

	if state.StreakUpdate.Broken {
		streakEvent := shared.NewDailyStreakBrokenEvent(
			learnerID,
			state.StreakUpdate.PreviousStreak,
			state.StreakUpdate.DaysMissed,
		)
		if err := s.eventBus.Publish(streakEvent); err != nil {
			s.log.Warn("failed to publish streak event", logger.Err(err))
		}
	}

	for _, badge := range state.NewBadges {
		badgeEvent := shared.NewBadgeUnlockedEvent(
			learnerID,
			string(badge.Type),
			badge.DisplayName,
			badge.AchievementValue,
		)
		if state.Assessment != nil {
			badgeEvent = badgeEvent.WithStage(string(state.Assessment.CurrentStage))
		}
		if err := s.eventBus.Publish(badgeEvent); err != nil {
			s.log.Warn("failed to publish badge event",
				logger.BadgeName(string(badge.Type)),
				logger.Err(err),
			)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// completionDataFromEvent maps a behavioral event onto the metrics update
// payload. Quality observations ride in the event context; absent keys leave
// the corresponding smoothed score untouched.
func completionDataFromEvent(event behavior.BehavioralEvent) progress.CompletionData {
	data := progress.CompletionData{
		AnalysisCompleted: event.Type == behavior.InteractionAnalysisCompletion,
		SessionDuration:   event.DurationSeconds,
		OccurredAt:        event.Timestamp,
	}

	if v, ok := contextFloat(event.Context, "pattern_performance"); ok {
		data.PatternPerformance = &v
	}
	if v, ok := contextFloat(event.Context, "research_quality"); ok {
		data.ResearchQuality = &v
	}
	if v, ok := contextFloat(event.Context, "community_contribution"); ok {
		data.CommunityContribution = &v
	}

	if raw, ok := event.Context["skill_improvements"].(map[string]interface{}); ok {
		improvements := make(map[string]float64, len(raw))
		for skill, value := range raw {
			if f, ok := toFloat(value); ok {
				improvements[skill] = f
			}
		}
		if len(improvements) > 0 {
			data.SkillImprovements = improvements
		}
	}

	return data
}

func contextFloat(context map[string]interface{}, key string) (float64, bool) {
	if context == nil {
		return 0, false
	}
	return toFloat(context[key])
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// wrapError wraps an error with saga context.
func (s *AchievementFlowSaga) wrapError(state *achievementFlowState, err error) error {
	return &AchievementFlowError{
		Step:      state.FailedStep,
		LearnerID: state.Input.LearnerID,
		Cause:     err,
		Message:   fmt.Sprintf("achievement flow failed at step '%s': %v", state.FailedStep, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowError represents an error during the achievement flow.
type AchievementFlowError struct {
	Step      AchievementFlowStep
	LearnerID shared.LearnerID
	Cause     error
	Message   string
}

// Error implements the error interface.
func (e *AchievementFlowError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AchievementFlowError) Unwrap() error {
	return e.Cause
}
