package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LOG STORE
// ══════════════════════════════════════════════════════════════════════════════

// EventLogStore persists session event logs in Redis sorted sets.
//
// Architecture:
//   - Each session has a key "events:{session_id}" holding a sorted set
//   - Score is the event's unix timestamp; the rolling retention window is
//     applied with ZREMRANGEBYSCORE on every append and read
//   - Members carry a unique id so identical events never collapse
//   - Keys expire after the retention window, so abandoned sessions vanish
type EventLogStore struct {
	cache  *Cache
	window time.Duration
}

// storedEvent is the wire form of a behavioral event in the sorted set.
type storedEvent struct {
	ID              string                 `json:"id"`
	Type            string                 `json:"type"`
	Timestamp       int64                  `json:"ts"`
	DurationSeconds float64                `json:"duration_seconds"`
	Context         map[string]interface{} `json:"context,omitempty"`
}

// NewEventLogStore creates a new EventLogStore. A zero window falls back to
// the domain default.
func NewEventLogStore(cache *Cache, window time.Duration) *EventLogStore {
	if window <= 0 {
		window = behavior.DefaultRetentionWindow
	}
	return &EventLogStore{cache: cache, window: window}
}

// Append implements behavior.EventLogStore.
func (s *EventLogStore) Append(ctx context.Context, sessionID shared.SessionID, event behavior.BehavioralEvent) error {
	key := EventLogKey(sessionID.String())

	data, err := json.Marshal(storedEvent{
		ID:              uuid.NewString(),
		Type:            string(event.Type),
		Timestamp:       event.Timestamp.Unix(),
		DurationSeconds: event.DurationSeconds,
		Context:         event.Context,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	cutoff := time.Now().UTC().Add(-s.window).Unix()

	pipe := s.cache.Client().Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(event.Timestamp.Unix()),
		Member: data,
	})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.Expire(ctx, key, s.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("event_log: failed to append: %w", err)
	}

	return nil
}

// Load implements behavior.EventLogStore. A session with no recorded events
// yields an empty log, not an error.
func (s *EventLogStore) Load(ctx context.Context, sessionID shared.SessionID) (*behavior.EventLog, error) {
	key := EventLogKey(sessionID.String())
	cutoff := time.Now().UTC().Add(-s.window).Unix()

	members, err := s.cache.Client().ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("event_log: failed to load: %w", err)
	}

	events := make([]behavior.BehavioralEvent, 0, len(members))
	for _, member := range members {
		var stored storedEvent
		if err := json.Unmarshal([]byte(member), &stored); err != nil {
			// Skip entries we cannot read instead of failing the session.
			continue
		}
		events = append(events, behavior.BehavioralEvent{
			Type:            behavior.InteractionType(stored.Type),
			Timestamp:       time.Unix(stored.Timestamp, 0).UTC(),
			DurationSeconds: stored.DurationSeconds,
			Context:         stored.Context,
			SessionID:       sessionID,
		})
	}

	return behavior.RestoreEventLog(sessionID, events), nil
}

// Count implements behavior.EventLogStore.
func (s *EventLogStore) Count(ctx context.Context, sessionID shared.SessionID) (int, error) {
	key := EventLogKey(sessionID.String())
	cutoff := time.Now().UTC().Add(-s.window).Unix()

	count, err := s.cache.Client().ZCount(ctx, key, strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("event_log: failed to count: %w", err)
	}

	return int(count), nil
}
