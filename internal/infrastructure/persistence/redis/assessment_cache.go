package redis

import (
	"context"
	"errors"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/application/query"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentCache stores serialized stage assessments keyed by session.
// Implements query.AssessmentCache.
type AssessmentCache struct {
	cache *Cache
}

// NewAssessmentCache creates a new AssessmentCache.
func NewAssessmentCache(cache *Cache) *AssessmentCache {
	return &AssessmentCache{cache: cache}
}

// Get returns the cached assessment for the session, or (nil, nil) on miss.
func (c *AssessmentCache) Get(ctx context.Context, sessionID shared.SessionID) (*query.CachedAssessment, error) {
	var cached query.CachedAssessment
	err := c.cache.Get(ctx, AssessmentKey(sessionID.String()), &cached)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &cached, nil
}

// Set stores the assessment with the given TTL.
func (c *AssessmentCache) Set(ctx context.Context, sessionID shared.SessionID, cached query.CachedAssessment, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLAssessment
	}
	return c.cache.Set(ctx, AssessmentKey(sessionID.String()), cached, ttl)
}
