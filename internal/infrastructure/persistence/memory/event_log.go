// Package memory provides in-memory implementations of the persistence
// interfaces. Used by tests and as a degraded mode when the backing stores
// are unavailable. All stores are safe for concurrent use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LOG STORE
// ══════════════════════════════════════════════════════════════════════════════

// EventLogStore keeps session event logs in a map. The rolling retention
// window is applied on every append and read, matching the Redis store.
type EventLogStore struct {
	mu     sync.RWMutex
	logs   map[shared.SessionID][]behavior.BehavioralEvent
	window time.Duration
}

// NewEventLogStore creates an empty in-memory event log store. A zero
// window falls back to the domain default.
func NewEventLogStore(window time.Duration) *EventLogStore {
	if window <= 0 {
		window = behavior.DefaultRetentionWindow
	}
	return &EventLogStore{
		logs:   make(map[shared.SessionID][]behavior.BehavioralEvent),
		window: window,
	}
}

// Append implements behavior.EventLogStore.
func (s *EventLogStore) Append(ctx context.Context, sessionID shared.SessionID, event behavior.BehavioralEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := append(s.logs[sessionID], event)
	s.logs[sessionID] = s.retained(events)
	return nil
}

// Load implements behavior.EventLogStore.
func (s *EventLogStore) Load(ctx context.Context, sessionID shared.SessionID) (*behavior.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	retained := s.retained(s.logs[sessionID])
	events := make([]behavior.BehavioralEvent, len(retained))
	copy(events, retained)

	return behavior.RestoreEventLog(sessionID, events), nil
}

// Count implements behavior.EventLogStore.
func (s *EventLogStore) Count(ctx context.Context, sessionID shared.SessionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.retained(s.logs[sessionID])), nil
}

// retained drops events older than the retention window.
func (s *EventLogStore) retained(events []behavior.BehavioralEvent) []behavior.BehavioralEvent {
	cutoff := time.Now().UTC().Add(-s.window)

	kept := events[:0:0]
	for _, event := range events {
		if !event.Timestamp.Before(cutoff) {
			kept = append(kept, event)
		}
	}
	return kept
}
