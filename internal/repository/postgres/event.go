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

type eventRepository struct {
	BaseRepository
}

func NewEventRepository(db sqlx.ExtContext) repository.EventRepository {
	return &eventRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *eventRepository) Create(ctx context.Context, event *model.ReportEvent) error {
	query := `
		INSERT INTO report_events (
			id, report_id, verb, state, author_id, content,
			item_kind, item_id,
			sender_role, sender_unit_name, receiver_role, receiver_unit_name,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.State == "" {
		event.State = model.EventStateActive
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.ReportID, event.Verb, event.State, event.AuthorID, event.Content,
		event.Item.Kind, event.Item.ID,
		event.Metadata.SenderRole, event.Metadata.SenderUnitName,
		event.Metadata.ReceiverRole, event.Metadata.ReceiverUnitName,
		event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report event: %w", err)
	}
	return nil
}

const eventColumns = `
	id, report_id, verb, state, author_id, content,
	item_kind AS "item.item_kind", item_id AS "item.item_id",
	sender_role AS "metadata.sender_role", sender_unit_name AS "metadata.sender_unit_name",
	receiver_role AS "metadata.receiver_role", receiver_unit_name AS "metadata.receiver_unit_name",
	created_at, updated_at, deleted_at
`

func (r *eventRepository) Get(ctx context.Context, id uuid.UUID) (*model.ReportEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM report_events WHERE id = $1 AND deleted_at IS NULL`

	var event model.ReportEvent
	if err := sqlx.GetContext(ctx, r.db, &event, query, id); err != nil {
		return nil, fmt.Errorf("failed to get report event: %w", err)
	}
	return &event, nil
}

func (r *eventRepository) ListByReport(ctx context.Context, reportID uuid.UUID) ([]*model.ReportEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM report_events
		WHERE report_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`
	var events []*model.ReportEvent
	if err := sqlx.SelectContext(ctx, r.db, &events, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to list report events: %w", err)
	}
	return events, nil
}

func (r *eventRepository) ListActive(ctx context.Context, item model.ItemRef, verb model.ReportEventVerb) ([]*model.ReportEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM report_events
		WHERE item_kind = $1 AND item_id = $2 AND verb = $3 AND state = $4 AND deleted_at IS NULL
		ORDER BY created_at
	`
	var events []*model.ReportEvent
	if err := sqlx.SelectContext(ctx, r.db, &events, query, item.Kind, item.ID, verb, model.EventStateActive); err != nil {
		return nil, fmt.Errorf("failed to list active events: %w", err)
	}
	return events, nil
}

func (r *eventRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE report_events SET state = $1, updated_at = $2
		WHERE id = $3 AND state = $4 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, model.EventStateInactive, time.Now(), id, model.EventStateActive)
	if err != nil {
		return fmt.Errorf("failed to deactivate event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("active event not found")
	}
	return nil
}
