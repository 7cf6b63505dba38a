package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
)

// Service enqueues search-index sync events. Every referral mutation records
// an outbox row in the same transaction; cmd/worker forwards the rows to the
// broker, so the request never waits on the index.
type Service struct {
	logger zerolog.Logger
}

func NewService(logger zerolog.Logger) *Service {
	return &Service{logger: logger}
}

type referralDocument struct {
	ID        uuid.UUID           `json:"id"`
	Title     string              `json:"title"`
	Object    string              `json:"object"`
	State     model.ReferralState `json:"state"`
	TopicID   *uuid.UUID          `json:"topic_id,omitempty"`
	DueDate   *time.Time          `json:"due_date,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// EnqueueReferralUpserted records an index-sync event for a created or
// mutated referral.
func (s *Service) EnqueueReferralUpserted(ctx context.Context, repos repository.Repos, referral *model.Referral) error {
	doc := referralDocument{
		ID:        referral.ID,
		Title:     referral.Title,
		Object:    referral.Object,
		State:     referral.State,
		TopicID:   referral.TopicID,
		DueDate:   referral.DueDate,
		UpdatedAt: referral.UpdatedAt,
	}
	return s.enqueue(ctx, repos, model.IndexEventReferralUpserted, doc)
}

// EnqueueReferralDeleted records an index-sync event for a removed referral.
func (s *Service) EnqueueReferralDeleted(ctx context.Context, repos repository.Repos, referralID uuid.UUID) error {
	return s.enqueue(ctx, repos, model.IndexEventReferralDeleted, map[string]uuid.UUID{"id": referralID})
}

func (s *Service) enqueue(ctx context.Context, repos repository.Repos, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal index payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   body,
		Status:    string(model.OutboxStatusPending),
	}
	if err := repos.Outbox.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to enqueue index event: %w", err)
	}

	s.logger.Debug().Str("event_type", eventType).Msg("index event enqueued")
	return nil
}
