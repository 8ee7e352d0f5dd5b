package behavior

import (
	"context"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// EventLogStore persists session-scoped event logs. Implementations apply
// the rolling retention window on every append, matching EventLog.Append.
//
// Two implementations exist: an in-memory map (tests, degraded mode) and a
// Redis-backed store (production).
type EventLogStore interface {
	// Append stores one event against the session and trims everything
	// outside the retention window.
	Append(ctx context.Context, sessionID shared.SessionID, event BehavioralEvent) error

	// Load returns the session's retained event log. A session with no
	// recorded events yields an empty log, not an error.
	Load(ctx context.Context, sessionID shared.SessionID) (*EventLog, error)

	// Count returns the number of retained events for the session.
	// Cheaper than Load when only the size matters (cache invalidation).
	Count(ctx context.Context, sessionID shared.SessionID) (int, error)
}

// StartMarkStore keeps interaction start timestamps keyed by
// (session, interaction type). Last start wins on repeated calls.
type StartMarkStore interface {
	// SetStart records the start timestamp, overwriting any previous mark.
	SetStart(ctx context.Context, sessionID shared.SessionID, t InteractionType, at time.Time) error

	// TakeStart returns and clears the start mark. ok is false when no
	// start was recorded for the pair.
	TakeStart(ctx context.Context, sessionID shared.SessionID, t InteractionType) (at time.Time, ok bool, err error)
}

// Completion is the payload forwarded to achievement processing when an
// interaction ends.
type Completion struct {
	LearnerID shared.LearnerID
	SessionID shared.SessionID
	Event     BehavioralEvent
}

// CompletionForwarder receives interaction completions as a best-effort side
// channel. Errors returned here are logged by the caller and never propagate
// to the interaction that triggered tracking.
type CompletionForwarder interface {
	ProcessCompletion(ctx context.Context, completion Completion) error
}

// Anonymizer converts raw platform user identifiers into pseudonymous
// learner ids before anything is recorded. The event pipeline never sees a
// raw id.
type Anonymizer interface {
	Pseudonymize(rawUserID string) shared.LearnerID
}
