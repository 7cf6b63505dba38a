package activity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
)

// Service records the referral activity trail. Writes go through the caller's
// transaction-bound repositories so a failed transition leaves no trace.
type Service struct {
	activities repository.ActivityRepository
	logger     zerolog.Logger
}

func NewService(activities repository.ActivityRepository, logger zerolog.Logger) *Service {
	return &Service{
		activities: activities,
		logger:     logger,
	}
}

// Record appends one activity entry inside the given repository bundle.
func (s *Service) Record(ctx context.Context, repos repository.Repos, referralID, actorID uuid.UUID, verb model.ReferralActivityVerb, item model.ItemRef, message string) error {
	entry := &model.ReferralActivity{
		ReferralID: referralID,
		ActorID:    actorID,
		Verb:       verb,
		Item:       item,
		Message:    message,
	}
	if err := repos.Activities.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}

	s.logger.Debug().
		Str("referral_id", referralID.String()).
		Str("actor_id", actorID.String()).
		Str("verb", string(verb)).
		Msg("activity recorded")
	return nil
}

// ListForReferral returns the full trail, oldest first.
func (s *Service) ListForReferral(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralActivity, error) {
	activities, err := s.activities.ListByReferral(ctx, referralID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

// CountForReferral returns the number of trail entries.
func (s *Service) CountForReferral(ctx context.Context, referralID uuid.UUID) (int, error) {
	count, err := s.activities.CountByReferral(ctx, referralID)
	if err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}
