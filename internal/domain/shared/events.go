// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Behavior events
	EventInteractionRecorded EventType = "behavior.interaction_recorded"
	EventWindowEvicted       EventType = "behavior.window_evicted"

	// Stage events
	EventStageAssessed EventType = "stage.assessed"
	EventStageAdvanced EventType = "stage.advanced"

	// Progress events
	EventMetricsUpdated     EventType = "progress.metrics_updated"
	EventBadgeUnlocked      EventType = "progress.badge_unlocked"
	EventDailyStreakUpdated EventType = "progress.streak_updated"
	EventDailyStreakBroken  EventType = "progress.streak_broken"

	// Notification events
	EventNotificationCreated EventType = "notification.created"
	EventNotificationFailed  EventType = "notification.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Behavior Events
// ═══════════════════════════════════════════════════════════════════════════

// InteractionRecordedEvent is emitted when a tracked interaction ends and its
// behavioral event has been appended to the session log.
type InteractionRecordedEvent struct {
	BaseEvent
	LearnerID       string  `json:"learner_id"`
	SessionID       string  `json:"session_id"`
	InteractionType string  `json:"interaction_type"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Payload implements Event interface.
func (e InteractionRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":       e.LearnerID,
		"session_id":       e.SessionID,
		"interaction_type": e.InteractionType,
		"duration_seconds": e.DurationSeconds,
	}
}

// NewInteractionRecordedEvent creates a new InteractionRecordedEvent.
func NewInteractionRecordedEvent(learnerID, sessionID, interactionType string, durationSeconds float64) InteractionRecordedEvent {
	return InteractionRecordedEvent{
		BaseEvent:       NewBaseEvent(EventInteractionRecorded, sessionID),
		LearnerID:       learnerID,
		SessionID:       sessionID,
		InteractionType: interactionType,
		DurationSeconds: durationSeconds,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Stage Events
// ═══════════════════════════════════════════════════════════════════════════

// StageAdvancedEvent is emitted when a fresh assessment classifies a learner
// into a higher stage than the previous assessment for the same session.
type StageAdvancedEvent struct {
	BaseEvent
	LearnerID     string  `json:"learner_id"`
	SessionID     string  `json:"session_id"`
	PreviousStage string  `json:"previous_stage"`
	NewStage      string  `json:"new_stage"`
	Confidence    float64 `json:"confidence"`
}

// Payload implements Event interface.
func (e StageAdvancedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID,
		"session_id":     e.SessionID,
		"previous_stage": e.PreviousStage,
		"new_stage":      e.NewStage,
		"confidence":     e.Confidence,
	}
}

// NewStageAdvancedEvent creates a new StageAdvancedEvent.
func NewStageAdvancedEvent(learnerID, sessionID, previousStage, newStage string, confidence float64) StageAdvancedEvent {
	return StageAdvancedEvent{
		BaseEvent:     NewBaseEvent(EventStageAdvanced, learnerID),
		LearnerID:     learnerID,
		SessionID:     sessionID,
		PreviousStage: previousStage,
		NewStage:      newStage,
		Confidence:    confidence,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// MetricsUpdatedEvent is emitted after a completion payload has been merged
// into a learner's progress metrics.
type MetricsUpdatedEvent struct {
	BaseEvent
	LearnerID     string `json:"learner_id"`
	AnalysisCount int    `json:"analysis_count"`
	CurrentStreak int    `json:"current_streak"`
}

// Payload implements Event interface.
func (e MetricsUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID,
		"analysis_count": e.AnalysisCount,
		"current_streak": e.CurrentStreak,
	}
}

// NewMetricsUpdatedEvent creates a new MetricsUpdatedEvent.
func NewMetricsUpdatedEvent(learnerID string, analysisCount, currentStreak int) MetricsUpdatedEvent {
	return MetricsUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventMetricsUpdated, learnerID),
		LearnerID:     learnerID,
		AnalysisCount: analysisCount,
		CurrentStreak: currentStreak,
	}
}

// BadgeUnlockedEvent is emitted when a badge is awarded to a learner.
type BadgeUnlockedEvent struct {
	BaseEvent
	LearnerID        string `json:"learner_id"`
	BadgeType        string `json:"badge_type"`
	DisplayName      string `json:"display_name"`
	AchievementValue int    `json:"achievement_value"`
	Stage            string `json:"stage,omitempty"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":        e.LearnerID,
		"badge_type":        e.BadgeType,
		"display_name":      e.DisplayName,
		"achievement_value": e.AchievementValue,
		"stage":             e.Stage,
	}
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(learnerID, badgeType, displayName string, achievementValue int) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent:        NewBaseEvent(EventBadgeUnlocked, learnerID),
		LearnerID:        learnerID,
		BadgeType:        badgeType,
		DisplayName:      displayName,
		AchievementValue: achievementValue,
	}
}

// WithStage attaches the stage the learner was in when the badge unlocked.
func (e BadgeUnlockedEvent) WithStage(stage string) BadgeUnlockedEvent {
	e.Stage = stage
	return e
}

// DailyStreakBrokenEvent is emitted when a learner's daily streak resets
// after a gap of more than one day.
type DailyStreakBrokenEvent struct {
	BaseEvent
	LearnerID      string `json:"learner_id"`
	PreviousStreak int    `json:"previous_streak"`
	DaysMissed     int    `json:"days_missed"`
}

// Payload implements Event interface.
func (e DailyStreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":      e.LearnerID,
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewDailyStreakBrokenEvent creates a new DailyStreakBrokenEvent.
func NewDailyStreakBrokenEvent(learnerID string, previousStreak, daysMissed int) DailyStreakBrokenEvent {
	return DailyStreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventDailyStreakBroken, learnerID),
		LearnerID:      learnerID,
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
