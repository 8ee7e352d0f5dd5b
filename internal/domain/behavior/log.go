package behavior

import (
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// DefaultRetentionWindow is the rolling window applied to every session
// event log. Events older than this are evicted on each append.
const DefaultRetentionWindow = 7 * 24 * time.Hour

// EventLog is the session-scoped append-only log of behavioral events.
// Events are kept in append order; the retention cutoff is enforced on every
// Append so the log never grows unbounded.
type EventLog struct {
	SessionID shared.SessionID
	Window    time.Duration
	events    []BehavioralEvent
}

// NewEventLog creates an empty event log for a session.
func NewEventLog(sessionID shared.SessionID) *EventLog {
	return &EventLog{
		SessionID: sessionID,
		Window:    DefaultRetentionWindow,
	}
}

// RestoreEventLog rebuilds a log from persisted events, preserving order.
// Used by storage adapters when loading a session.
func RestoreEventLog(sessionID shared.SessionID, events []BehavioralEvent) *EventLog {
	return &EventLog{
		SessionID: sessionID,
		Window:    DefaultRetentionWindow,
		events:    append([]BehavioralEvent(nil), events...),
	}
}

// Append adds an event and evicts everything older than the retention
// window relative to now.
func (l *EventLog) Append(event BehavioralEvent, now time.Time) {
	l.events = append(l.events, event)
	l.EvictExpired(now)
}

// EvictExpired drops events outside the rolling window ending at now.
func (l *EventLog) EvictExpired(now time.Time) {
	window := l.Window
	if window <= 0 {
		window = DefaultRetentionWindow
	}
	cutoff := now.Add(-window)

	kept := l.events[:0]
	for _, e := range l.events {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	l.events = kept
}

// Events returns the retained events in append order.
func (l *EventLog) Events() []BehavioralEvent {
	return l.events
}

// Len returns the number of retained events, valid or not.
func (l *EventLog) Len() int {
	return len(l.events)
}

// ValidEvents returns retained events that are well-formed. Malformed
// entries are silently skipped, not counted.
func (l *EventLog) ValidEvents() []BehavioralEvent {
	valid := make([]BehavioralEvent, 0, len(l.events))
	for _, e := range l.events {
		if e.IsValid() {
			valid = append(valid, e)
		}
	}
	return valid
}

// CountsByType partitions the valid events by interaction type.
func (l *EventLog) CountsByType() map[InteractionType]int {
	counts := make(map[InteractionType]int, len(AllInteractionTypes))
	for _, e := range l.events {
		if e.IsValid() {
			counts[e.Type]++
		}
	}
	return counts
}

// TotalDurationSeconds sums the duration of all valid events.
func (l *EventLog) TotalDurationSeconds() float64 {
	var total float64
	for _, e := range l.events {
		if e.IsValid() {
			total += e.DurationSeconds
		}
	}
	return total
}
