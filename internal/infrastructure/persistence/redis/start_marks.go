package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// START MARK STORE
// ══════════════════════════════════════════════════════════════════════════════

// StartMarkStore keeps interaction start timestamps in plain TTL keys.
//
// Architecture:
//   - Key "startmark:{session_id}:{interaction_type}" holds a unix-nano
//     timestamp; SET overwrites (last-start-wins), GETDEL consumes
//   - The TTL bounds how long an unmatched start can inflate a duration
type StartMarkStore struct {
	cache *Cache
	ttl   time.Duration
}

// NewStartMarkStore creates a new StartMarkStore.
func NewStartMarkStore(cache *Cache, ttl time.Duration) *StartMarkStore {
	if ttl <= 0 {
		ttl = TTLStartMark
	}
	return &StartMarkStore{cache: cache, ttl: ttl}
}

// SetStart implements behavior.StartMarkStore.
func (s *StartMarkStore) SetStart(ctx context.Context, sessionID shared.SessionID, t behavior.InteractionType, at time.Time) error {
	key := StartMarkKey(sessionID.String(), string(t))
	value := strconv.FormatInt(at.UTC().UnixNano(), 10)

	if err := s.cache.Client().Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("start_marks: failed to set: %w", err)
	}
	return nil
}

// TakeStart implements behavior.StartMarkStore. The mark is consumed
// atomically: two concurrent ends see at most one start.
func (s *StartMarkStore) TakeStart(ctx context.Context, sessionID shared.SessionID, t behavior.InteractionType) (time.Time, bool, error) {
	key := StartMarkKey(sessionID.String(), string(t))

	value, err := s.cache.Client().GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("start_marks: failed to take: %w", err)
	}

	nanos, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("start_marks: corrupt mark: %w", err)
	}

	return time.Unix(0, nanos).UTC(), true, nil
}
