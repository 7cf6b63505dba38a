package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(db sqlx.ExtContext) repository.NotificationRepository {
	return &notificationRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []*model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	query := `
		INSERT INTO notifications (id, notifier_id, notified_id, type, preview, referral_id, item_kind, item_id, read_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	now := time.Now()
	for _, n := range notifications {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		n.CreatedAt = now
		n.UpdatedAt = now

		_, err := r.db.ExecContext(ctx, query,
			n.ID, n.NotifierID, n.NotifiedID, n.Type, n.Preview,
			n.ReferralID, n.Item.Kind, n.Item.ID, n.ReadAt,
			n.CreatedAt, n.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
	}
	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	query := `
		SELECT id, notifier_id, notified_id, type, preview, referral_id,
		       item_kind AS "item.item_kind", item_id AS "item.item_id",
		       read_at, created_at, updated_at, deleted_at
		FROM notifications
		WHERE notified_id = $1 AND deleted_at IS NULL
	`
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC"

	var notifications []*model.Notification
	if err := sqlx.SelectContext(ctx, r.db, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE notifications SET read_at = $1, updated_at = $2
		WHERE id = $3 AND notified_id = $4 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, at, time.Now(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE notified_id = $1 AND read_at IS NULL AND deleted_at IS NULL`

	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
