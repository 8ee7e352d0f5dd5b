package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/notification"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

var _ notification.Repository = (*NotificationRepository)(nil)

// NotificationRepository implements notification.Repository for PostgreSQL.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Save stores a notification in the feed.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, learner_id, type, title, message, data, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}
	if n.Data == nil {
		dataJSON = []byte(`{}`)
	}

	_, err = r.conn.Exec(ctx, query,
		string(n.ID),
		n.LearnerID.String(),
		string(n.Type),
		n.Title,
		n.Message,
		dataJSON,
		n.ReadAt,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	return nil
}

// GetByID returns a notification by its identifier.
func (r *NotificationRepository) GetByID(ctx context.Context, id notification.NotificationID) (*notification.Notification, error) {
	query := `
		SELECT id, learner_id, type, title, message, data, read_at, created_at
		FROM notifications
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, string(id))
	return r.scanNotification(row)
}

// ListByLearner returns the learner's feed, newest first.
func (r *NotificationRepository) ListByLearner(ctx context.Context, learnerID shared.LearnerID, p shared.Pagination) ([]notification.Notification, error) {
	query := `
		SELECT id, learner_id, type, title, message, data, read_at, created_at
		FROM notifications
		WHERE learner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, learnerID.String(), p.Limit(), p.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]notification.Notification, 0)
	for rows.Next() {
		n, err := r.scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}

// CountUnread returns the number of unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, learnerID shared.LearnerID) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE learner_id = $1 AND read_at IS NULL
	`

	var count int
	if err := r.conn.QueryRow(ctx, query, learnerID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

// MarkRead marks a notification as read. Already-read notifications keep
// their original read timestamp.
func (r *NotificationRepository) MarkRead(ctx context.Context, id notification.NotificationID) error {
	query := `
		UPDATE notifications
		SET read_at = $1
		WHERE id = $2 AND read_at IS NULL
	`

	result, err := r.conn.Exec(ctx, query, time.Now().UTC(), string(id))
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either missing or already read; only the former is an error.
		exists, err := r.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return shared.ErrNotificationNotFound
		}
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *NotificationRepository) exists(ctx context.Context, id notification.NotificationID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`,
		string(id),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return exists, nil
}

func (r *NotificationRepository) scanNotification(row pgx.Row) (*notification.Notification, error) {
	var (
		n         notification.Notification
		id        string
		learnerID string
		notifType string
		dataJSON  []byte
	)

	err := row.Scan(&id, &learnerID, &notifType, &n.Title, &n.Message, &dataJSON, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	n.ID = notification.NotificationID(id)
	n.LearnerID = shared.LearnerID(learnerID)
	n.Type = notification.NotificationType(notifType)

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
		}
	}

	return &n, nil
}
