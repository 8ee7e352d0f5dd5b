// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACK INTERACTION COMMAND
// Records learner interactions with the analysis UI: tooltip lookups, warning
// reads, research guide visits, completed analyses, comparisons, predictions
// and community posts. This feed is what the stage assessment runs on.
// ══════════════════════════════════════════════════════════════════════════════

// InteractionPhase tells the tracker whether an interaction is starting or
// ending. Durations are derived from the start/end pair.
type InteractionPhase string

const (
	// PhaseStart - the interaction began; a start mark is recorded.
	PhaseStart InteractionPhase = "start"

	// PhaseEnd - the interaction finished; the behavioral event is written.
	PhaseEnd InteractionPhase = "end"
)

// TrackInteractionCommand contains the data to track one interaction phase.
type TrackInteractionCommand struct {
	// RawUserID is the platform user identifier. It is pseudonymized
	// before anything is stored; raw ids never reach the event log.
	RawUserID string

	// SessionID identifies the learning session. An empty session id makes
	// tracking a silent no-op: interactions outside a session are not an
	// error, they are simply not learning signal.
	SessionID string

	// Type is the interaction type (tooltip_usage, analysis_completion, ...).
	Type string

	// Phase is start or end.
	Phase InteractionPhase

	// Context carries interaction-specific data (company, screen, ...).
	Context map[string]interface{}

	// Timestamp is when the phase occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c TrackInteractionCommand) Validate() error {
	if c.RawUserID == "" {
		return errors.New("track_interaction: user id is required")
	}

	if _, err := behavior.ParseInteractionType(c.Type); err != nil {
		return fmt.Errorf("track_interaction: %w", err)
	}

	switch c.Phase {
	case PhaseStart, PhaseEnd:
	default:
		return fmt.Errorf("track_interaction: unknown phase: %s", c.Phase)
	}

	return nil
}

// TrackInteractionResult contains the result of tracking an interaction.
type TrackInteractionResult struct {
	// Tracked indicates the phase was recorded.
	Tracked bool

	// Skipped is true when tracking was a deliberate no-op (no session).
	Skipped bool

	// LearnerID is the pseudonymous learner id used for storage.
	LearnerID string

	// SessionID is the session the interaction belongs to.
	SessionID string

	// Type is the interaction type recorded.
	Type string

	// DurationSeconds is the measured duration (end phase only; zero when
	// no matching start mark existed).
	DurationSeconds float64

	// Events contains domain events generated.
	Events []shared.Event

	// RecordedAt is when the phase was recorded.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// TrackInteractionHandler handles the TrackInteractionCommand.
type TrackInteractionHandler struct {
	eventLog       behavior.EventLogStore
	startMarks     behavior.StartMarkStore
	anonymizer     behavior.Anonymizer
	forwarder      behavior.CompletionForwarder
	eventPublisher shared.EventPublisher
	log            *logger.Logger

	// Configuration
	maxDuration time.Duration // Caps measured durations against stale start marks
}

// TrackInteractionHandlerConfig contains configuration for the handler.
type TrackInteractionHandlerConfig struct {
	MaxDuration time.Duration
}

// DefaultTrackInteractionHandlerConfig returns default configuration.
func DefaultTrackInteractionHandlerConfig() TrackInteractionHandlerConfig {
	return TrackInteractionHandlerConfig{
		MaxDuration: 2 * time.Hour,
	}
}

// NewTrackInteractionHandler creates a new TrackInteractionHandler.
func NewTrackInteractionHandler(
	eventLog behavior.EventLogStore,
	startMarks behavior.StartMarkStore,
	anonymizer behavior.Anonymizer,
	forwarder behavior.CompletionForwarder,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
	config TrackInteractionHandlerConfig,
) *TrackInteractionHandler {
	if config.MaxDuration == 0 {
		config = DefaultTrackInteractionHandlerConfig()
	}

	return &TrackInteractionHandler{
		eventLog:       eventLog,
		startMarks:     startMarks,
		anonymizer:     anonymizer,
		forwarder:      forwarder,
		eventPublisher: eventPublisher,
		log:            log,
		maxDuration:    config.MaxDuration,
	}
}

// Handle executes the track interaction command.
func (h *TrackInteractionHandler) Handle(ctx context.Context, cmd TrackInteractionCommand) (*TrackInteractionResult, error) {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Set timestamp if not provided
	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	learnerID := h.anonymizer.Pseudonymize(cmd.RawUserID)
	interactionType, _ := behavior.ParseInteractionType(cmd.Type)

	result := &TrackInteractionResult{
		LearnerID:  learnerID.String(),
		SessionID:  cmd.SessionID,
		Type:       cmd.Type,
		RecordedAt: timestamp,
		Events:     make([]shared.Event, 0),
	}

	// No active session: skip silently
	if cmd.SessionID == "" {
		result.Skipped = true
		h.log.Debug("interaction outside a session, skipping",
			logger.LearnerID(learnerID.String()),
			logger.InteractionType(cmd.Type),
		)
		return result, nil
	}

	sessionID, err := shared.NewSessionID(cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("track_interaction: %w", err)
	}

	switch cmd.Phase {
	case PhaseStart:
		if err := h.handleStart(ctx, sessionID, interactionType, timestamp); err != nil {
			return nil, err
		}
	case PhaseEnd:
		if err := h.handleEnd(ctx, learnerID, sessionID, interactionType, cmd, timestamp, result); err != nil {
			return nil, err
		}
	}

	result.Tracked = true

	// Publish events
	if h.eventPublisher != nil {
		for _, event := range result.Events {
			_ = h.eventPublisher.Publish(event)
		}
	}

	return result, nil
}

// handleStart records the start mark for a (session, type) pair.
func (h *TrackInteractionHandler) handleStart(
	ctx context.Context,
	sessionID shared.SessionID,
	t behavior.InteractionType,
	at time.Time,
) error {
	if err := h.startMarks.SetStart(ctx, sessionID, t, at); err != nil {
		return fmt.Errorf("track_interaction: failed to record start mark: %w", err)
	}
	return nil
}

// handleEnd measures the duration, appends the behavioral event to the
// session log and forwards completions to achievement processing.
func (h *TrackInteractionHandler) handleEnd(
	ctx context.Context,
	learnerID shared.LearnerID,
	sessionID shared.SessionID,
	t behavior.InteractionType,
	cmd TrackInteractionCommand,
	timestamp time.Time,
	result *TrackInteractionResult,
) error {
	// Duration from the start/end pair. Without a start mark the event is
	// still recorded, just with zero duration.
	var duration float64
	startAt, ok, err := h.startMarks.TakeStart(ctx, sessionID, t)
	if err != nil {
		h.log.Warn("start mark lookup failed, recording zero duration",
			logger.SessionName(sessionID.String()),
			logger.InteractionType(cmd.Type),
			logger.Err(err),
		)
	} else if ok {
		elapsed := timestamp.Sub(startAt)
		if elapsed > h.maxDuration {
			elapsed = h.maxDuration
		}
		if elapsed > 0 {
			duration = elapsed.Seconds()
		}
	}

	event := behavior.NewBehavioralEvent(sessionID, t, timestamp, duration, cmd.Context)

	if err := h.eventLog.Append(ctx, sessionID, event); err != nil {
		return fmt.Errorf("track_interaction: failed to append event: %w", err)
	}

	result.DurationSeconds = duration

	recorded := shared.NewInteractionRecordedEvent(
		learnerID.String(),
		sessionID.String(),
		cmd.Type,
		duration,
	)
	if cmd.CorrelationID != "" {
		recorded.BaseEvent = recorded.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, recorded)

	// Every completed interaction feeds the achievement flow: streaks and
	// session time accumulate on any activity, not only finished analyses.
	// The side channel is best-effort: a failure there never fails the
	// interaction.
	if h.forwarder != nil {
		completion := behavior.Completion{
			LearnerID: learnerID,
			SessionID: sessionID,
			Event:     event,
		}
		if err := h.forwarder.ProcessCompletion(ctx, completion); err != nil {
			h.log.Warn("achievement forwarding failed",
				logger.LearnerID(learnerID.String()),
				logger.SessionName(sessionID.String()),
				logger.Err(err),
			)
		}
	}

	return nil
}
