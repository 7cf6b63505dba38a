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

type activityRepository struct {
	BaseRepository
}

func NewActivityRepository(db sqlx.ExtContext) repository.ActivityRepository {
	return &activityRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *activityRepository) Create(ctx context.Context, activity *model.ReferralActivity) error {
	query := `
		INSERT INTO referral_activities (id, referral_id, actor_id, verb, item_kind, item_id, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	activity.CreatedAt = time.Now()
	activity.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		activity.ID, activity.ReferralID, activity.ActorID, activity.Verb,
		activity.Item.Kind, activity.Item.ID, activity.Message,
		activity.CreatedAt, activity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

func (r *activityRepository) ListByReferral(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralActivity, error) {
	query := `
		SELECT id, referral_id, actor_id, verb,
		       item_kind AS "item.item_kind", item_id AS "item.item_id",
		       message, created_at, updated_at, deleted_at
		FROM referral_activities
		WHERE referral_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`
	var activities []*model.ReferralActivity
	if err := sqlx.SelectContext(ctx, r.db, &activities, query, referralID); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

func (r *activityRepository) CountByReferral(ctx context.Context, referralID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM referral_activities WHERE referral_id = $1 AND deleted_at IS NULL`

	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, query, referralID); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}
