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

type referralRepository struct {
	BaseRepository
}

func NewReferralRepository(db sqlx.ExtContext) repository.ReferralRepository {
	return &referralRepository{BaseRepository: NewBaseRepository(db)}
}

const referralColumns = `
	id, title, object, question, context, prior_work, state,
	topic_id, urgency_level_id, sent_at, due_date,
	close_explanation, urgency_explanation, parent_id,
	created_at, updated_at, deleted_at
`

func (r *referralRepository) Create(ctx context.Context, referral *model.Referral) error {
	query := `
		INSERT INTO referrals (
			id, title, object, question, context, prior_work, state,
			topic_id, urgency_level_id, sent_at, due_date,
			close_explanation, urgency_explanation, parent_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	if referral.ID == uuid.Nil {
		referral.ID = uuid.New()
	}
	referral.CreatedAt = time.Now()
	referral.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		referral.ID,
		referral.Title,
		referral.Object,
		referral.Question,
		referral.Context,
		referral.PriorWork,
		referral.State,
		referral.TopicID,
		referral.UrgencyLevelID,
		referral.SentAt,
		referral.DueDate,
		referral.CloseExplanation,
		referral.UrgencyExplanation,
		referral.ParentID,
		referral.CreatedAt,
		referral.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create referral: %w", err)
	}
	return nil
}

func (r *referralRepository) Get(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1 AND deleted_at IS NULL`

	var referral model.Referral
	if err := sqlx.GetContext(ctx, r.db, &referral, query, id); err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}

	units, err := r.ListUnits(ctx, id)
	if err != nil {
		return nil, err
	}
	referral.Units = units

	links, err := r.ListUserLinks(ctx, id)
	if err != nil {
		return nil, err
	}
	referral.UserLinks = links

	assignments, err := r.ListAssignments(ctx, id)
	if err != nil {
		return nil, err
	}
	referral.Assignments = assignments

	return &referral, nil
}

func (r *referralRepository) Update(ctx context.Context, referral *model.Referral) error {
	query := `
		UPDATE referrals
		SET title = $1, object = $2, question = $3, context = $4, prior_work = $5,
		    state = $6, topic_id = $7, urgency_level_id = $8, sent_at = $9, due_date = $10,
		    close_explanation = $11, urgency_explanation = $12, updated_at = $13
		WHERE id = $14 AND deleted_at IS NULL
	`
	referral.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		referral.Title,
		referral.Object,
		referral.Question,
		referral.Context,
		referral.PriorWork,
		referral.State,
		referral.TopicID,
		referral.UrgencyLevelID,
		referral.SentAt,
		referral.DueDate,
		referral.CloseExplanation,
		referral.UrgencyExplanation,
		referral.UpdatedAt,
		referral.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update referral: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("referral not found")
	}
	return nil
}

func (r *referralRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE referrals SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete referral: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("referral not found")
	}
	return nil
}

func (r *referralRepository) List(ctx context.Context, filters *model.ReferralFilters) ([]*model.Referral, error) {
	query := `SELECT DISTINCT r.id, r.title, r.object, r.question, r.context, r.prior_work, r.state,
		r.topic_id, r.urgency_level_id, r.sent_at, r.due_date,
		r.close_explanation, r.urgency_explanation, r.parent_id,
		r.created_at, r.updated_at, r.deleted_at
		FROM referrals r
		LEFT JOIN referral_units ru ON ru.referral_id = r.id
		LEFT JOIN referral_user_links rul ON rul.referral_id = r.id
		WHERE r.deleted_at IS NULL`

	args := []interface{}{}
	idx := 1

	if filters != nil {
		if filters.UnitID != nil {
			query += fmt.Sprintf(" AND ru.unit_id = $%d", idx)
			args = append(args, *filters.UnitID)
			idx++
		}
		if filters.UserID != nil {
			query += fmt.Sprintf(" AND rul.user_id = $%d", idx)
			args = append(args, *filters.UserID)
			idx++
		}
		if filters.State != "" {
			query += fmt.Sprintf(" AND r.state = $%d", idx)
			args = append(args, filters.State)
			idx++
		}
		if filters.TopicID != nil {
			query += fmt.Sprintf(" AND r.topic_id = $%d", idx)
			args = append(args, *filters.TopicID)
			idx++
		}
		if filters.DueBefore != nil {
			query += fmt.Sprintf(" AND r.due_date <= $%d", idx)
			args = append(args, *filters.DueBefore)
			idx++
		}
		if filters.SearchTerm != "" {
			query += fmt.Sprintf(" AND (r.title ILIKE $%d OR r.object ILIKE $%d)", idx, idx)
			args = append(args, "%"+filters.SearchTerm+"%")
			idx++
		}
	}

	query += " ORDER BY r.created_at DESC"

	var referrals []*model.Referral
	if err := sqlx.SelectContext(ctx, r.db, &referrals, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return referrals, nil
}

func (r *referralRepository) AddUserLink(ctx context.Context, link *model.ReferralUserLink) error {
	query := `
		INSERT INTO referral_user_links (id, referral_id, user_id, role, notifications, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	link.CreatedAt = time.Now()
	link.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		link.ID, link.ReferralID, link.UserID, link.Role, link.Notifications, link.CreatedAt, link.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add user link: %w", err)
	}
	return nil
}

func (r *referralRepository) GetUserLink(ctx context.Context, referralID, userID uuid.UUID) (*model.ReferralUserLink, error) {
	query := `
		SELECT id, referral_id, user_id, role, notifications, created_at, updated_at, deleted_at
		FROM referral_user_links
		WHERE referral_id = $1 AND user_id = $2 AND deleted_at IS NULL
	`
	var link model.ReferralUserLink
	if err := sqlx.GetContext(ctx, r.db, &link, query, referralID, userID); err != nil {
		return nil, fmt.Errorf("failed to get user link: %w", err)
	}
	return &link, nil
}

func (r *referralRepository) ListUserLinks(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralUserLink, error) {
	query := `
		SELECT id, referral_id, user_id, role, notifications, created_at, updated_at, deleted_at
		FROM referral_user_links
		WHERE referral_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`
	var links []*model.ReferralUserLink
	if err := sqlx.SelectContext(ctx, r.db, &links, query, referralID); err != nil {
		return nil, fmt.Errorf("failed to list user links: %w", err)
	}
	return links, nil
}

func (r *referralRepository) RemoveUserLink(ctx context.Context, referralID, userID uuid.UUID, role model.ReferralUserLinkRole) error {
	query := `
		UPDATE referral_user_links SET deleted_at = $1
		WHERE referral_id = $2 AND user_id = $3 AND role = $4 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), referralID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to remove user link: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user link not found")
	}
	return nil
}

func (r *referralRepository) AddUnitLink(ctx context.Context, link *model.ReferralUnitLink) error {
	query := `
		INSERT INTO referral_units (id, referral_id, unit_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	link.CreatedAt = time.Now()
	link.UpdatedAt = time.Now()

	if _, err := r.db.ExecContext(ctx, query, link.ID, link.ReferralID, link.UnitID, link.CreatedAt, link.UpdatedAt); err != nil {
		return fmt.Errorf("failed to add unit link: %w", err)
	}
	return nil
}

func (r *referralRepository) ListUnits(ctx context.Context, referralID uuid.UUID) ([]*model.Unit, error) {
	query := `
		SELECT u.id, u.name, u.created_at, u.updated_at, u.deleted_at
		FROM units u
		JOIN referral_units ru ON ru.unit_id = u.id
		WHERE ru.referral_id = $1 AND ru.deleted_at IS NULL AND u.deleted_at IS NULL
		ORDER BY u.name
	`
	var units []*model.Unit
	if err := sqlx.SelectContext(ctx, r.db, &units, query, referralID); err != nil {
		return nil, fmt.Errorf("failed to list referral units: %w", err)
	}
	return units, nil
}

func (r *referralRepository) RemoveUnitLink(ctx context.Context, referralID, unitID uuid.UUID) error {
	query := `
		UPDATE referral_units SET deleted_at = $1
		WHERE referral_id = $2 AND unit_id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), referralID, unitID)
	if err != nil {
		return fmt.Errorf("failed to remove unit link: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("unit link not found")
	}
	return nil
}

func (r *referralRepository) AddAssignment(ctx context.Context, assignment *model.ReferralAssignment) error {
	query := `
		INSERT INTO referral_assignments (id, referral_id, assignee_id, unit_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	assignment.CreatedAt = time.Now()
	assignment.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		assignment.ID, assignment.ReferralID, assignment.AssigneeID, assignment.UnitID,
		assignment.CreatedBy, assignment.CreatedAt, assignment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add assignment: %w", err)
	}
	return nil
}

func (r *referralRepository) ListAssignments(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralAssignment, error) {
	query := `
		SELECT id, referral_id, assignee_id, unit_id, created_by, created_at, updated_at, deleted_at
		FROM referral_assignments
		WHERE referral_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`
	var assignments []*model.ReferralAssignment
	if err := sqlx.SelectContext(ctx, r.db, &assignments, query, referralID); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return assignments, nil
}

func (r *referralRepository) RemoveAssignment(ctx context.Context, referralID, assigneeID uuid.UUID) error {
	query := `
		UPDATE referral_assignments SET deleted_at = $1
		WHERE referral_id = $2 AND assignee_id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), referralID, assigneeID)
	if err != nil {
		return fmt.Errorf("failed to remove assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("assignment not found")
	}
	return nil
}

func (r *referralRepository) GetUrgency(ctx context.Context, id uuid.UUID) (*model.ReferralUrgency, error) {
	query := `
		SELECT id, name, duration_days, requires_justification, is_default, created_at, updated_at, deleted_at
		FROM referral_urgencies
		WHERE id = $1 AND deleted_at IS NULL
	`
	var urgency model.ReferralUrgency
	if err := sqlx.GetContext(ctx, r.db, &urgency, query, id); err != nil {
		return nil, fmt.Errorf("failed to get urgency level: %w", err)
	}
	return &urgency, nil
}

func (r *referralRepository) GetDefaultUrgency(ctx context.Context) (*model.ReferralUrgency, error) {
	query := `
		SELECT id, name, duration_days, requires_justification, is_default, created_at, updated_at, deleted_at
		FROM referral_urgencies
		WHERE is_default = TRUE AND deleted_at IS NULL
		LIMIT 1
	`
	var urgency model.ReferralUrgency
	if err := sqlx.GetContext(ctx, r.db, &urgency, query); err != nil {
		return nil, fmt.Errorf("failed to get default urgency level: %w", err)
	}
	return &urgency, nil
}
