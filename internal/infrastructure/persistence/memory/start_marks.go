package memory

import (
	"context"
	"sync"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// START MARK STORE
// ══════════════════════════════════════════════════════════════════════════════

type startMarkKey struct {
	sessionID shared.SessionID
	kind      behavior.InteractionType
}

// StartMarkStore keeps interaction start timestamps in a map.
// Last start wins; TakeStart consumes the mark.
type StartMarkStore struct {
	mu    sync.Mutex
	marks map[startMarkKey]time.Time
}

// NewStartMarkStore creates an empty in-memory start mark store.
func NewStartMarkStore() *StartMarkStore {
	return &StartMarkStore{marks: make(map[startMarkKey]time.Time)}
}

// SetStart implements behavior.StartMarkStore.
func (s *StartMarkStore) SetStart(ctx context.Context, sessionID shared.SessionID, t behavior.InteractionType, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marks[startMarkKey{sessionID: sessionID, kind: t}] = at.UTC()
	return nil
}

// TakeStart implements behavior.StartMarkStore.
func (s *StartMarkStore) TakeStart(ctx context.Context, sessionID shared.SessionID, t behavior.InteractionType) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := startMarkKey{sessionID: sessionID, kind: t}
	at, ok := s.marks[key]
	if !ok {
		return time.Time{}, false, nil
	}

	delete(s.marks, key)
	return at, true, nil
}
