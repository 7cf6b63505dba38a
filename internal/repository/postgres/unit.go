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

type unitRepository struct {
	BaseRepository
}

func NewUnitRepository(db sqlx.ExtContext) repository.UnitRepository {
	return &unitRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *unitRepository) CreateUnit(ctx context.Context, unit *model.Unit) error {
	query := `
		INSERT INTO units (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	unit.CreatedAt = time.Now()
	unit.UpdatedAt = time.Now()

	if _, err := r.db.ExecContext(ctx, query, unit.ID, unit.Name, unit.CreatedAt, unit.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create unit: %w", err)
	}
	return nil
}

func (r *unitRepository) GetUnit(ctx context.Context, id uuid.UUID) (*model.Unit, error) {
	query := `
		SELECT id, name, created_at, updated_at, deleted_at
		FROM units
		WHERE id = $1 AND deleted_at IS NULL
	`
	var unit model.Unit
	if err := sqlx.GetContext(ctx, r.db, &unit, query, id); err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	return &unit, nil
}

func (r *unitRepository) CreateMembership(ctx context.Context, membership *model.UnitMembership) error {
	query := `
		INSERT INTO unit_memberships (id, user_id, unit_id, role, is_validator, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if membership.ID == uuid.Nil {
		membership.ID = uuid.New()
	}
	membership.CreatedAt = time.Now()
	membership.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		membership.ID,
		membership.UserID,
		membership.UnitID,
		membership.Role,
		membership.IsValidator,
		membership.CreatedAt,
		membership.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create unit membership: %w", err)
	}
	return nil
}

func (r *unitRepository) ListUserMemberships(ctx context.Context, userID uuid.UUID, unitIDs []uuid.UUID) ([]*model.UnitMembership, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT m.id, m.user_id, m.unit_id, m.role, m.is_validator, m.created_at, m.updated_at, m.deleted_at,
		       u.name AS unit_name
		FROM unit_memberships m
		JOIN units u ON u.id = m.unit_id
		WHERE m.user_id = ? AND m.unit_id IN (?) AND m.deleted_at IS NULL
	`, userID, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build membership query: %w", err)
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var memberships []*model.UnitMembership
	if err := sqlx.SelectContext(ctx, r.db, &memberships, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list user memberships: %w", err)
	}
	return memberships, nil
}

func (r *unitRepository) ListMembershipsByRoles(ctx context.Context, unitIDs []uuid.UUID, roles []model.UnitMembershipRole) ([]*model.UnitMembership, error) {
	if len(unitIDs) == 0 || len(roles) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT m.id, m.user_id, m.unit_id, m.role, m.is_validator, m.created_at, m.updated_at, m.deleted_at,
		       u.name AS unit_name,
		       TRIM(usr.first_name || ' ' || usr.last_name) AS user_full_name
		FROM unit_memberships m
		JOIN units u ON u.id = m.unit_id
		JOIN users usr ON usr.id = m.user_id
		WHERE m.unit_id IN (?) AND m.role IN (?) AND m.deleted_at IS NULL
		ORDER BY u.name, usr.last_name
	`, unitIDs, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to build membership query: %w", err)
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var memberships []*model.UnitMembership
	if err := sqlx.SelectContext(ctx, r.db, &memberships, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list memberships by role: %w", err)
	}
	return memberships, nil
}

func (r *unitRepository) GetTopic(ctx context.Context, id uuid.UUID) (*model.Topic, error) {
	query := `
		SELECT id, name, unit_id, parent_id, is_active, created_at, updated_at, deleted_at
		FROM topics
		WHERE id = $1 AND deleted_at IS NULL
	`
	var topic model.Topic
	if err := sqlx.GetContext(ctx, r.db, &topic, query, id); err != nil {
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return &topic, nil
}
