package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/notification"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

var _ notification.Repository = (*NotificationRepository)(nil)

// NotificationRepository keeps the notification feed in a map.
type NotificationRepository struct {
	mu    sync.RWMutex
	byID  map[notification.NotificationID]*notification.Notification
	feeds map[shared.LearnerID][]notification.NotificationID
}

// NewNotificationRepository creates an empty in-memory notification feed.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		byID:  make(map[notification.NotificationID]*notification.Notification),
		feeds: make(map[shared.LearnerID][]notification.NotificationID),
	}
}

// Save implements notification.Repository.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *n
	r.byID[n.ID] = &clone
	r.feeds[n.LearnerID] = append(r.feeds[n.LearnerID], n.ID)
	return nil
}

// GetByID implements notification.Repository.
func (r *NotificationRepository) GetByID(ctx context.Context, id notification.NotificationID) (*notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotificationNotFound
	}
	clone := *n
	return &clone, nil
}

// ListByLearner implements notification.Repository, newest first.
func (r *NotificationRepository) ListByLearner(ctx context.Context, learnerID shared.LearnerID, p shared.Pagination) ([]notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	feed := make([]notification.Notification, 0, len(r.feeds[learnerID]))
	for _, id := range r.feeds[learnerID] {
		if n, ok := r.byID[id]; ok {
			feed = append(feed, *n)
		}
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})

	offset := p.Offset()
	if offset >= len(feed) {
		return []notification.Notification{}, nil
	}

	end := offset + p.Limit()
	if end > len(feed) {
		end = len(feed)
	}
	return feed[offset:end], nil
}

// CountUnread implements notification.Repository.
func (r *NotificationRepository) CountUnread(ctx context.Context, learnerID shared.LearnerID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, id := range r.feeds[learnerID] {
		if n, ok := r.byID[id]; ok && !n.IsRead() {
			count++
		}
	}
	return count, nil
}

// MarkRead implements notification.Repository.
func (r *NotificationRepository) MarkRead(ctx context.Context, id notification.NotificationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok {
		return shared.ErrNotificationNotFound
	}
	n.MarkRead(time.Now().UTC())
	return nil
}
