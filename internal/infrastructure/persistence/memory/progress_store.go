package memory

import (
	"context"
	"sync"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/progress"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS STORE
// ══════════════════════════════════════════════════════════════════════════════

// ProgressStore keeps progress metrics and badges in maps. Records are
// deep-copied on both read and write so callers never share state with the
// store.
type ProgressStore struct {
	mu      sync.RWMutex
	metrics map[shared.LearnerID]*progress.ProgressMetrics
	badges  map[shared.LearnerID][]progress.Badge
}

// NewProgressStore creates an empty in-memory progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		metrics: make(map[shared.LearnerID]*progress.ProgressMetrics),
		badges:  make(map[shared.LearnerID][]progress.Badge),
	}
}

// GetMetrics implements progress.Store.
func (s *ProgressStore) GetMetrics(ctx context.Context, learnerID shared.LearnerID) (*progress.ProgressMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.metrics[learnerID]
	if !ok {
		return nil, shared.ErrMetricsNotFound
	}
	return copyMetrics(m), nil
}

// UpsertMetrics implements progress.Store (last-writer-wins).
func (s *ProgressStore) UpsertMetrics(ctx context.Context, metrics *progress.ProgressMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyMetrics(metrics)
	stored.UpdatedAt = time.Now().UTC()
	if existing, ok := s.metrics[metrics.LearnerID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	s.metrics[metrics.LearnerID] = stored
	return nil
}

// CompareAndSwapMetrics implements progress.Store. A zero expectedUpdatedAt
// means the record must not exist yet.
func (s *ProgressStore) CompareAndSwapMetrics(ctx context.Context, metrics *progress.ProgressMetrics, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.metrics[metrics.LearnerID]
	if expectedUpdatedAt.IsZero() {
		if ok {
			return shared.ErrMetricsConflict
		}
	} else {
		if !ok || !existing.UpdatedAt.Equal(expectedUpdatedAt) {
			return shared.ErrMetricsConflict
		}
	}

	stored := copyMetrics(metrics)
	stored.UpdatedAt = time.Now().UTC()
	if ok {
		stored.CreatedAt = existing.CreatedAt
	}
	s.metrics[metrics.LearnerID] = stored
	return nil
}

// SaveBadge implements progress.Store.
func (s *ProgressStore) SaveBadge(ctx context.Context, learnerID shared.LearnerID, badge progress.Badge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, earned := range s.badges[learnerID] {
		if earned.Type == badge.Type {
			return false, nil
		}
	}

	s.badges[learnerID] = append(s.badges[learnerID], badge)
	return true, nil
}

// ListBadges implements progress.Store. Badges come back in grant order,
// which is oldest first.
func (s *ProgressStore) ListBadges(ctx context.Context, learnerID shared.LearnerID) ([]progress.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	badges := make([]progress.Badge, len(s.badges[learnerID]))
	copy(badges, s.badges[learnerID])
	return badges, nil
}

// HasBadge implements progress.Store.
func (s *ProgressStore) HasBadge(ctx context.Context, learnerID shared.LearnerID, badgeType progress.BadgeType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, earned := range s.badges[learnerID] {
		if earned.Type == badgeType {
			return true, nil
		}
	}
	return false, nil
}

// copyMetrics clones a metrics record including the skill map.
func copyMetrics(m *progress.ProgressMetrics) *progress.ProgressMetrics {
	clone := *m
	clone.SkillCompetencies = make(map[string]float64, len(m.SkillCompetencies))
	for skill, v := range m.SkillCompetencies {
		clone.SkillCompetencies[skill] = v
	}
	return &clone
}
